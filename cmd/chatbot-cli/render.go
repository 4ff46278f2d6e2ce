package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/chat"
	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/client"
	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/events"
	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/store"
)

var (
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5FAFFF")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5FD787")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AF87FF")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#808080"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F"))
)

// renderer formats assistant replies as markdown, falling back to plain text.
type renderer struct {
	md *glamour.TermRenderer
}

func newRenderer() *renderer {
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return &renderer{}
	}
	return &renderer{md: md}
}

func (r *renderer) markdown(text string) string {
	if r.md == nil {
		return text
	}
	out, err := r.md.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

func senderLabel(s store.Sender) string {
	if s == store.SenderUser {
		return userStyle.Render("You")
	}
	return assistantStyle.Render("Assistant")
}

func printReply(w io.Writer, r *renderer, reply string) {
	fmt.Fprintln(w, senderLabel(store.SenderAI))
	fmt.Fprintln(w, r.markdown(reply))
}

func printHistory(w io.Writer, r *renderer, hist *chat.History) {
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("session"), hist.Conversation.ID)
	if len(hist.Messages) == 0 {
		fmt.Fprintln(w, dimStyle.Render("(no messages)"))
		return
	}
	for _, m := range hist.Messages {
		stamp := dimStyle.Render(m.CreatedAt.Local().Format("2006-01-02 15:04"))
		fmt.Fprintf(w, "%s %s\n", senderLabel(m.Sender), stamp)
		if m.Sender == store.SenderAI {
			fmt.Fprintln(w, r.markdown(m.Text))
		} else {
			fmt.Fprintln(w, m.Text)
		}
	}
}

func formatEvent(subject string, evt events.TurnEvent) string {
	stamp := dimStyle.Render(evt.Timestamp.Local().Format("15:04:05"))
	line := fmt.Sprintf("%s %s session=%s", stamp, labelStyle.Render(subject), evt.SessionID)
	switch subject {
	case events.SubjectTurnCompleted:
		line += " message=" + evt.MessageID
	case events.SubjectTurnFailed:
		line += " " + errorStyle.Render("kind="+evt.Kind)
	}
	return line
}

// errorText prefers the server's message for API errors.
func errorText(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
