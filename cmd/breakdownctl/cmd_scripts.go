package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Corphon/ScriptBreakdown/internal/models"
	"github.com/Corphon/ScriptBreakdown/internal/store"
)

func newScriptsCmd(opts *options) *cobra.Command {
	var (
		search, status string
		awaiting       bool
		q              store.ScriptQuery
	)

	cmd := &cobra.Command{
		Use:   "scripts",
		Short: "List analyzed scripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *store.Store) error {
				var ok bool
				if awaiting {
					ok = s.ScriptsAwaitingFeedback(ctx, q.Page, q.Limit)
				} else {
					s.SetFilters(search, status)
					ok = s.FetchScripts(ctx, q)
				}
				if !ok {
					return failure(s, "listing scripts failed")
				}

				scripts := s.Scripts()
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"scripts":    scripts,
						"pagination": s.Pagination(),
						"statistics": s.Statistics(),
					})
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tFILENAME\tSTATUS\tSCENES\tBUDGET")
				for _, sc := range scripts {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", sc.ID, sc.Filename, sc.Status, sc.TotalScenes, sc.BudgetCategory)
				}
				if err := tw.Flush(); err != nil {
					return err
				}

				st := s.Statistics()
				p := s.Pagination()
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d shown of %d; %d completed, %d pending, %d errors\n",
					len(scripts), p.Total, st.Completed, st.Pending, st.Errors)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "Filter by filename")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().BoolVar(&awaiting, "awaiting-feedback", false, "Only scripts waiting for a review")
	cmd.Flags().IntVar(&q.Page, "page", 0, "Page number, from 0")
	cmd.Flags().IntVar(&q.Limit, "limit", 0, "Page size (default: service default)")
	cmd.Flags().StringVar(&q.OrderBy, "order-by", "", "Sort field, e.g. created_at or filename")
	cmd.Flags().StringVar(&q.OrderDirection, "order", "", "asc or desc")
	return cmd
}

func newAnalyzeCmd(opts *options) *cobra.Command {
	var analyzeOnly bool

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Upload a script for analysis and save the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			file := models.ScriptFile{Name: filepath.Base(args[0]), Content: f}

			return opts.run(cmd, func(ctx context.Context, s *store.Store) error {
				out := cmd.OutOrStdout()

				if analyzeOnly {
					res := s.AnalyzeScript(ctx, file)
					if res == nil {
						return failure(s, "analysis failed")
					}
					return printJSON(out, res)
				}

				saved := s.AnalyzeAndSave(ctx, file)
				if saved == nil {
					return failure(s, "analysis failed")
				}
				if opts.asJSON {
					return printJSON(out, saved)
				}
				fmt.Fprintf(out, "Saved %s as %s\n", file.Name, saved.DatabaseID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&analyzeOnly, "no-save", false, "Print the analysis without saving it")
	return cmd
}

func newFeedbackCmd(opts *options) *cobra.Command {
	var (
		text       string
		approve    bool
		reanalysis bool
	)

	cmd := &cobra.Command{
		Use:   "feedback <script-id>",
		Short: "Review an analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *store.Store) error {
				res := s.ProvideFeedback(ctx, args[0], text, approve, reanalysis)
				if res == nil {
					return failure(s, "feedback failed")
				}
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (status %s)\n", res.ScriptID, res.ActionTaken, res.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "Review comments")
	cmd.Flags().BoolVar(&approve, "approve", false, "Approve the analysis")
	cmd.Flags().BoolVar(&reanalysis, "reanalyze", false, "Request a new analysis")
	return cmd
}

func newChatCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <script-id> <message>...",
		Short: "Ask the assistant about a script",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args[1:], " ")
			return opts.run(cmd, func(ctx context.Context, s *store.Store) error {
				reply, ok := s.ChatWithScript(ctx, args[0], message)
				if !ok {
					return failure(s, "no reply")
				}
				fmt.Fprintln(cmd.OutOrStdout(), reply)
				return nil
			})
		},
	}
}

func newDeleteScriptsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-scripts <script-id>...",
		Short: "Delete scripts concurrently",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *store.Store) error {
				results := s.DeleteScripts(ctx, args)
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), results)
				}

				failed := 0
				for _, r := range results {
					if r.OK {
						fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", r.ID)
						continue
					}
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "failed %s: %s\n", r.ID, r.Error)
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d deletions failed", failed, len(results))
				}
				return nil
			})
		},
	}
}
