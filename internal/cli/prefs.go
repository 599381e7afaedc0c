package cli

import (
	"fmt"
	"strings"

	"healthmate/internal/prefs"

	"github.com/spf13/cobra"
)

func newPrefsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Manage allergies and disliked foods",
	}

	change := func(add bool) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			store, err := opts.localStore()
			if err != nil {
				return err
			}
			p, err := store.LoadPreferences()
			if err != nil {
				return err
			}

			item := strings.Join(args[1:], " ")
			var changed bool
			if add {
				changed = p.Add(kind, item)
			} else {
				changed = p.Remove(kind, item)
			}
			if changed {
				if err := store.SavePreferences(p); err != nil {
					return err
				}
			}
			printPreferences(cmd, p)
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <allergy|dislike> <food...>",
			Short: "Add a food to avoid",
			Args:  cobra.MinimumNArgs(2),
			RunE:  change(true),
		},
		&cobra.Command{
			Use:   "remove <allergy|dislike> <food...>",
			Short: "Remove a food",
			Args:  cobra.MinimumNArgs(2),
			RunE:  change(false),
		},
		&cobra.Command{
			Use:   "list",
			Short: "Show current preferences",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := opts.localStore()
				if err != nil {
					return err
				}
				p, err := store.LoadPreferences()
				if err != nil {
					return err
				}
				printPreferences(cmd, p)
				return nil
			},
		},
	)
	return cmd
}

func parseKind(s string) (prefs.Kind, error) {
	switch strings.ToLower(s) {
	case "allergy", "allergies":
		return prefs.Allergy, nil
	case "dislike", "dislikes":
		return prefs.Dislike, nil
	}
	return "", fmt.Errorf("unknown preference kind %q, want allergy or dislike", s)
}

func printPreferences(cmd *cobra.Command, p prefs.Set) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Allergies: %s\n", joinOrNone(p.Allergies))
	fmt.Fprintf(out, "Dislikes:  %s\n", joinOrNone(p.Dislikes))
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
