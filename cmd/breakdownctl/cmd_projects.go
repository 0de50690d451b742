package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Corphon/ScriptBreakdown/internal/budget"
	"github.com/Corphon/ScriptBreakdown/internal/store"
)

func newProjectsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List demo, script and remote projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *store.Store) error {
				s.FetchProjects(ctx)
				projects := s.Projects()
				selected, _ := s.SelectedProject()

				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"projects":    projects,
						"selected_id": selected,
					})
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "\tID\tTITLE\tSTATUS\tSCRIPTS")
				for _, p := range projects {
					mark := ""
					if p.ID == selected {
						mark = "*"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", mark, p.ID, p.Title, p.Status, p.ScriptsCount)
				}
				return tw.Flush()
			})
		},
	}
}

func newSelectCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "select <project-id-or-title>",
		Short: "Select the working project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *store.Store) error {
				s.FetchProjects(ctx)
				out := cmd.OutOrStdout()

				if s.SetSelectedProject(args[0]) {
					id, title := s.SelectedProject()
					fmt.Fprintf(out, "Selected %s (%s)\n", title, id)
					return nil
				}
				if id, _ := s.SelectedProject(); id == args[0] {
					fmt.Fprintf(out, "Project %s is not loaded yet; it will be selected once it appears\n", id)
					return nil
				}
				return fmt.Errorf("project %q not found", args[0])
			})
		},
	}
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session, the selected project and the remote service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *store.Store) error {
				health := s.CheckHealth(ctx)
				id, title := s.SelectedProject()
				sess := s.Session()

				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"session":       sess,
						"project_id":    id,
						"project_title": title,
						"remote":        health,
						"last_error":    s.LastError(),
					})
				}

				out := cmd.OutOrStdout()
				if err := printSession(cmd, opts, sess); err != nil {
					return err
				}
				if id != "" {
					fmt.Fprintf(out, "Project: %s (%s)\n", title, id)
				} else {
					fmt.Fprintln(out, "Project: none selected")
				}
				if health != nil {
					fmt.Fprintf(out, "Remote: %s %s (%s)\n", opts.apiURL, health.Status, health.Version)
				} else {
					fmt.Fprintf(out, "Remote: %s unreachable: %s\n", opts.apiURL, s.LastError())
				}
				return nil
			})
		},
	}
}

func newBudgetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "budget [project-id]",
		Short: "Show the budget breakdown of a project (default: the selected one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *store.Store) error {
				s.FetchProjects(ctx)

				id, _ := s.SelectedProject()
				if len(args) == 1 {
					id = args[0]
				}
				if id == "" {
					return fmt.Errorf("no project selected")
				}

				categories, b, err := s.BudgetCategories(ctx, id)
				if err != nil {
					return err
				}
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"project_id": id,
						"categories": categories,
						"breakdown":  b,
					})
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CATEGORY\tAMOUNT\tSHARE")
				for _, c := range categories {
					fmt.Fprintf(tw, "%s\t%s\t%.1f%%\n", c.Name, c.Formatted, c.Percentage)
				}
				fmt.Fprintf(tw, "Total\t%s\t\n", budget.FormatAmountWith(s.Currency(), b.Total))
				return tw.Flush()
			})
		},
	}
}
