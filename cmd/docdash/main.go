package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"docdash/internal/app"
	"docdash/internal/stubserver"
	"docdash/internal/tui"
)

const version = "1.0.0"

func newSession(cfg app.Config, logger *app.Logger) *app.SessionManager {
	client := app.NewClient(cfg.APIBaseURL, cfg.AccessToken, logger)
	client.HTTP.Timeout = time.Duration(cfg.RequestTimeoutSec) * time.Second
	client.OnUnauthorized = func() {
		logger.Warn("access token rejected by backend", nil)
	}
	return app.NewSessionManager(client, logger)
}

func main() {
	root := &cobra.Command{
		Use:     "docdash",
		Short:   "DocDash - terminal client for the document platform's AI chat",
		Long:    "DocDash is an interactive terminal client for the document management platform's AI assistant.\n\nUse without arguments for the chat TUI, or with subcommands for one-shot operations.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(app.DefaultConfigPath())
			if err != nil {
				return err
			}
			logger := app.NewLogger(app.DefaultLogWriter())
			session := newSession(cfg, logger)

			archive, err := app.OpenArchive("")
			if err != nil {
				// The archive is optional; chat works without it.
				logger.Warn("archive unavailable", map[string]interface{}{"error": err.Error()})
				archive = nil
			}

			p := tea.NewProgram(tui.New(session, cfg, archive), tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return err
			}
			return nil
		},
	}

	conversationsCmd := &cobra.Command{
		Use:   "conversations",
		Short: "List conversations for the configured user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(app.DefaultConfigPath())
			if err != nil {
				return err
			}
			if cfg.UserID == "" {
				return fmt.Errorf("no user id configured; set user_id in the config or DOCDASH_USER_ID")
			}
			logger := app.NewLogger(app.DefaultLogWriter())
			session := newSession(cfg, logger)

			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			session.LoadConversations(ctx, cfg.UserID)

			convs := session.Conversations()
			if len(convs) == 0 {
				fmt.Println("no conversations")
				return nil
			}
			for _, conv := range convs {
				fmt.Println(formatConversationLine(conv))
			}
			return nil
		},
	}

	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Send a one-shot question to the AI assistant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(app.DefaultConfigPath())
			if err != nil {
				return err
			}
			if cfg.UserID == "" {
				return fmt.Errorf("no user id configured; set user_id in the config or DOCDASH_USER_ID")
			}
			logger := app.NewLogger(app.DefaultLogWriter())
			session := newSession(cfg, logger)
			session.StartNewConversation()

			ctx, cancel := context.WithTimeout(cmd.Context(), 120*time.Second)
			defer cancel()
			if err := session.SendMessage(ctx, args[0], cfg.UserID); err != nil {
				return err
			}

			msgs := session.Messages()
			if len(msgs) == 0 {
				return fmt.Errorf("no reply")
			}
			last := msgs[len(msgs)-1]
			fmt.Println(last.Content)
			if last.Kind == app.KindError {
				os.Exit(1)
			}
			return nil
		},
	}

	var stubAddr string
	var stubToken string
	stubCmd := &cobra.Command{
		Use:   "stub",
		Short: "Run a local in-memory stand-in for the AI backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := stubserver.New(stubserver.Options{Token: stubToken})

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigChan
				_ = srv.App().Shutdown()
			}()

			fmt.Printf("stub AI backend listening on %s\n", stubAddr)
			return srv.Listen(stubAddr)
		},
	}
	stubCmd.Flags().StringVar(&stubAddr, "addr", ":8000", "listen address")
	stubCmd.Flags().StringVar(&stubToken, "token", "", "require this bearer token (empty disables auth)")

	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "List locally archived conversation transcripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := app.OpenArchive("")
			if err != nil {
				return err
			}
			defer archive.Close()

			entries, err := archive.ListTranscripts()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("no archived transcripts")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s  %-40s  %d message(s)  saved %s\n",
					e.ConversationID, truncateTitle(e.Title, 40), e.MessageCount,
					e.SavedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export [conversation-id]",
		Short: "Fetch a conversation's history and archive it locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(app.DefaultConfigPath())
			if err != nil {
				return err
			}
			logger := app.NewLogger(app.DefaultLogWriter())
			session := newSession(cfg, logger)

			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			if cfg.UserID != "" {
				session.LoadConversations(ctx, cfg.UserID)
			}
			session.SelectConversation(ctx, args[0])

			msgs := session.Messages()
			if len(msgs) == 1 && msgs[0].Kind == app.KindError {
				return fmt.Errorf("history fetch failed: %s", msgs[0].Content)
			}

			archive, err := app.OpenArchive("")
			if err != nil {
				return err
			}
			defer archive.Close()

			conv := session.SelectedConversation()
			if conv == nil {
				conv = &app.Conversation{ID: args[0], UserID: cfg.UserID}
			}
			if err := archive.SaveTranscript(*conv, msgs); err != nil {
				return err
			}
			fmt.Printf("archived %d message(s) from %s\n", len(msgs), args[0])
			return nil
		},
	}

	archiveCmd.AddCommand(exportCmd)
	root.AddCommand(conversationsCmd, askCmd, stubCmd, archiveCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func formatConversationLine(conv app.Conversation) string {
	title := strings.TrimSpace(conv.Title)
	if title == "" {
		title = "Untitled"
	}
	preview := ""
	if conv.LastMessage != nil {
		preview = strings.Join(strings.Fields(conv.LastMessage.Content), " ")
		if len(preview) > 60 {
			preview = preview[:60] + "..."
		}
	}
	return fmt.Sprintf("%s  %-32s  %3d msg  %s  %s",
		conv.ID, truncateTitle(title, 32), conv.MessageCount,
		conv.UpdatedAt.Format("2006-01-02 15:04"), preview)
}

func truncateTitle(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
