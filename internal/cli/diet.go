package cli

import (
	"fmt"
	"strings"

	"healthmate/internal/app"
	"healthmate/internal/diet"

	"github.com/spf13/cobra"
)

func newSuggestCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest",
		Short: "Generate five diet and lifestyle suggestions",
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

			return withApp(cmd.Context(), func(a *app.App) error {
				result, err := a.Diet.GenerateSuggestions(cmd.Context(), opts.userID, p)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, s := range result.Suggestions {
					fmt.Fprintf(out, "[%s] %s\n  %s\n", s.Category, s.Title, s.Description)
				}
				if result.Source == diet.SourceFallback {
					fmt.Fprintf(out, "\n(default suggestions: %s)\n", result.Reason)
				}
				return nil
			})
		},
	}
}

func newPlanCmd(opts *options) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "plan <goal...>",
		Short: "Generate a one-day diet plan for a goal",
		Example: `  healthmate plan more energy in the afternoon
  healthmate plan --save lose weight without feeling hungry`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.localStore()
			if err != nil {
				return err
			}
			p, err := store.LoadPreferences()
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), func(a *app.App) error {
				plan, err := a.Diet.GeneratePlan(cmd.Context(), diet.PlanRequest{
					UserID:      opts.userID,
					Prompt:      strings.Join(args, " "),
					Preferences: p,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), plan)

				if save {
					plans, err := store.AddPlan(plan)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "\nSaved (%d in history).\n", len(plans))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Add the plan to the local history")
	return cmd
}

func newRegenCmd(opts *options) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "regen <Breakfast|Lunch|Dinner|Snacks> <goal...>",
		Short: "Append alternatives for one section to the latest plan",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			section := args[0]
			if !diet.ValidSection(section) {
				return diet.ErrInvalidSection
			}

			store, err := opts.localStore()
			if err != nil {
				return err
			}
			p, err := store.LoadPreferences()
			if err != nil {
				return err
			}
			current, err := store.LatestPlan()
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), func(a *app.App) error {
				plan, err := a.Diet.GeneratePlan(cmd.Context(), diet.PlanRequest{
					UserID:            opts.userID,
					Prompt:            strings.Join(args[1:], " "),
					RegenerateSection: section,
					CurrentPlan:       current,
					Preferences:       p,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), plan)

				if save {
					if _, err := store.AddPlan(plan); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Add the updated plan to the local history")
	return cmd
}

func newPlansCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List the local plan history, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.localStore()
			if err != nil {
				return err
			}
			plans, err := store.LoadPlans()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(plans) == 0 {
				fmt.Fprintln(out, "No saved plans.")
				return nil
			}
			for i, p := range plans {
				first, _, _ := strings.Cut(strings.TrimSpace(p.Content), "\n")
				fmt.Fprintf(out, "%2d. %s  %s\n", i+1, p.CreatedAt.Format("2006-01-02 15:04"), first)
			}
			return nil
		},
	}
}
