package cli

import (
	"fmt"
	"strings"
	"time"

	"healthmate/internal/app"
	"healthmate/internal/auth"
	"healthmate/internal/config"
	"healthmate/internal/report"

	"github.com/spf13/cobra"
)

func newChatCmd(opts *options) *cobra.Command {
	var chatID string

	cmd := &cobra.Command{
		Use:   "chat <message...>",
		Short: "Ask the health assistant a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				reply, err := a.Assistant.Send(cmd.Context(), opts.userID, chatID, strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), reply.Response)
				fmt.Fprintf(cmd.ErrOrStderr(), "\n(chat %s)\n", reply.ChatID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&chatID, "chat-id", "", "Continue an existing chat")
	return cmd
}

func newAnalyzeCmd(opts *options) *cobra.Command {
	var fileURL string
	var save bool

	cmd := &cobra.Command{
		Use:   "analyze <fileName>",
		Short: "Summarize a medical report in plain language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				summary, err := a.Analyzer.Analyze(cmd.Context(), report.AnalyzeRequest{FileName: args[0], FileURL: fileURL})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), summary)
				if save {
					if _, err := a.Reports.Save(cmd.Context(), opts.userID, args[0], summary); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&fileURL, "url", "", "Where to fetch the report content from")
	cmd.Flags().BoolVar(&save, "save", false, "Store the summary under the user")
	return cmd
}

func newCleanupCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "metrics-cleanup",
		Short: "Remove old usage records and expired bot sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				metricRows, sessionRows, err := a.Cleanup(cmd.Context(), days)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d old metric records and %d expired sessions.\n", metricRows, sessionRows)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "Keep records for the last N days")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <userID>",
		Short: "Issue an API token signed with AUTH_JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewFromEnv()
			if err != nil {
				return err
			}
			if cfg.AuthJWTSecret == "" {
				return fmt.Errorf("AUTH_JWT_SECRET environment variable not set")
			}
			token, err := auth.NewVerifier(cfg.AuthJWTSecret).Sign(args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
