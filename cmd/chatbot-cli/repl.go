package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/chat"
)

// chatAPI is the part of client.Client the REPL needs.
type chatAPI interface {
	SendMessage(ctx context.Context, message, sessionID string) (*chat.TurnResult, error)
	History(ctx context.Context, sessionID string) (*chat.History, error)
}

type repl struct {
	api         chatAPI
	sessionID   string
	out         io.Writer
	render      *renderer
	line        *liner.State
	historyFile string
}

func newREPL(api chatAPI, sessionID string, out io.Writer) *repl {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	r := &repl{
		api:         api,
		sessionID:   sessionID,
		out:         out,
		render:      newRenderer(),
		line:        line,
		historyFile: historyPath(),
	}
	if f, err := os.Open(r.historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	return r
}

func historyPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "chatbot", "cli_history")
}

// Close saves input history and restores the terminal.
func (r *repl) Close() {
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0o700); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

func (r *repl) Run(ctx context.Context) error {
	fmt.Fprintln(r.out, labelStyle.Render("ShopEase support")+" "+dimStyle.Render("/new /history /quit"))
	for {
		input, err := r.line.Prompt("you> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		r.line.AppendHistory(input)

		if !r.handle(ctx, input) {
			return nil
		}
	}
}

// handle processes one line of input and reports whether to keep reading.
func (r *repl) handle(ctx context.Context, input string) bool {
	switch input {
	case "/quit", "/exit":
		return false
	case "/new":
		r.sessionID = ""
		fmt.Fprintln(r.out, dimStyle.Render("started a new conversation"))
		return true
	case "/history":
		if r.sessionID == "" {
			fmt.Fprintln(r.out, dimStyle.Render("no conversation yet"))
			return true
		}
		hist, err := r.api.History(ctx, r.sessionID)
		if err != nil {
			fmt.Fprintln(r.out, errorStyle.Render(errorText(err)))
			return true
		}
		printHistory(r.out, r.render, hist)
		return true
	}

	if strings.HasPrefix(input, "/") {
		fmt.Fprintln(r.out, errorStyle.Render("unknown command "+input))
		return true
	}

	fmt.Fprintln(r.out, dimStyle.Render("thinking..."))
	res, err := r.api.SendMessage(ctx, input, r.sessionID)
	if err != nil {
		fmt.Fprintln(r.out, errorStyle.Render(errorText(err)))
		return true
	}
	r.sessionID = res.SessionID
	printReply(r.out, r.render, res.Reply)
	return true
}
