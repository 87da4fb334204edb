package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcoot/memorygrid/internal/api/response"
	"github.com/mcoot/memorygrid/internal/client"
	"github.com/mcoot/memorygrid/internal/model"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect sessions",
	}

	cmd.AddCommand(newSessionShowCmd())
	cmd.AddCommand(newSessionQRCmd())
	cmd.AddCommand(newSessionMembersCmd())
	cmd.AddCommand(newSessionLeaderboardCmd())

	return cmd
}

func sessionPath(code string) string {
	return "/api/v1/sessions/" + url.PathEscape(strings.ToUpper(strings.TrimSpace(code)))
}

func newSessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <code>",
		Short: "Show a session's status and members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Session
			if err := apiClient.Get(cmd.Context(), sessionPath(args[0]), &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newSessionQRCmd() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "qr <code>",
		Short: "Download the invite QR code for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			png, err := apiClient.GetRaw(cmd.Context(), sessionPath(args[0])+"/qr")
			if err != nil {
				return err
			}

			if outFile == "" {
				outFile = strings.ToUpper(strings.TrimSpace(args[0])) + ".png"
			}
			if err := os.WriteFile(outFile, png, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outFile, err)
			}

			NewOutput(cfg.Output).PrintMessage("QR code written to " + outFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&outFile, "out", "", "Output file (default <CODE>.png)")

	return cmd
}

func newSessionMembersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "members <code>",
		Short: "List a session's members over the live connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := dialSession(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()

			members, err := conn.GetMemberList(cmd.Context(), model.SessionCode(args[0]))
			if err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(members)
			return nil
		},
	}
}

func newSessionLeaderboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard <code>",
		Short: "Show a session's leaderboard over the live connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := dialSession(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()

			leaderboard, err := conn.GetLeaderboard(cmd.Context(), model.SessionCode(args[0]))
			if err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(leaderboard)
			return nil
		},
	}
}

// dialSession opens a websocket connection with the configured token
func dialSession(ctx context.Context) (*client.Conn, error) {
	if cfg.Token == "" {
		return nil, errors.New("not signed in: run 'memgrid identity guest' or 'memgrid identity login' first")
	}

	wsURL, err := cfg.WebSocketURL()
	if err != nil {
		return nil, err
	}

	return client.Dial(ctx, wsURL, client.Options{
		Token:     cfg.Token,
		Handshake: true,
		Logger:    cliLogger(),
	})
}

// cliLogger is silent unless --verbose is set
func cliLogger() *slog.Logger {
	if !cfg.Verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
