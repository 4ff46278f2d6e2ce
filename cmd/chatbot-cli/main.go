// Command chatbot-cli is a terminal front end for the chatbot API.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/client"
	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/events"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var serverURL, sessionID string

	root := &cobra.Command{
		Use:           "chatbot-cli",
		Short:         "Chat with the ShopEase support assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := newREPL(client.New(serverURL), sessionID, cmd.OutOrStdout())
			defer r.Close()
			return r.Run(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&serverURL, "server", envOr("CHATBOT_SERVER", client.DefaultServerURL), "chatbot API base URL")
	root.Flags().StringVar(&sessionID, "session", "", "resume an existing session id")

	root.AddCommand(&cobra.Command{
		Use:   "history <sessionId>",
		Short: "Print a stored conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hist, err := client.New(serverURL).History(cmd.Context(), args[0])
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render(errorText(err)))
				return err
			}
			printHistory(cmd.OutOrStdout(), newRenderer(), hist)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Show server, database and model status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := client.New(serverURL).Health(cmd.Context())
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render(errorText(err)))
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s status=%s database=%s llm=%s\n",
				labelStyle.Render("health"), h.Status, h.Database, h.LLM)
			return nil
		},
	})

	root.AddCommand(newEventsCmd())

	return root
}

func newEventsCmd() *cobra.Command {
	var natsURL, natsToken string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow conversation events published by the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if natsURL == "" {
				return fmt.Errorf("--nats or NATS_URL is required")
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
			ec, err := events.NewClient(natsURL, natsToken, "chatbot-cli", logger)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render(err.Error()))
				return err
			}
			defer ec.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, dimStyle.Render("watching "+events.SubjectAll+", ctrl+c to stop"))
			return ec.Watch(ctx, events.SubjectAll, func(subject string, evt events.TurnEvent) {
				fmt.Fprintln(out, formatEvent(subject, evt))
			})
		},
	}
	cmd.Flags().StringVar(&natsURL, "nats", os.Getenv("NATS_URL"), "NATS server URL")
	cmd.Flags().StringVar(&natsToken, "nats-token", os.Getenv("NATS_TOKEN"), "NATS auth token")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
