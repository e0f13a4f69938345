package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"loopforge/internal/config"
	"loopforge/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the job queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queued jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				jobs, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						job.Title,
						string(job.RenderStatus),
						string(job.UploadStatus),
						fmt.Sprintf("%d%%", job.ProgressPercent),
						humanize.Time(job.ScheduledAt),
					})
				}
				table := renderTable(
					[]string{"ID", "Title", "Render", "Upload", "Progress", "Scheduled"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job in detail, including its log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				job, err := store.GetByID(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job %d: %s\n", job.ID, job.Title)
				fmt.Fprintf(out, "  Video:      %s\n", job.VideoPath)
				fmt.Fprintf(out, "  Audio:      %s\n", job.AudioPath)
				fmt.Fprintf(out, "  Duration:   %.2fh (watermark %s, mute %t)\n", job.DurationHours, job.Watermark, job.MuteOriginal)
				fmt.Fprintf(out, "  Render:     %s\n", job.RenderStatus)
				fmt.Fprintf(out, "  Upload:     %s (scheduled %s, %s)\n", job.UploadStatus,
					job.ScheduledAt.Local().Format("2006-01-02 15:04"), humanize.Time(job.ScheduledAt))
				fmt.Fprintf(out, "  Progress:   %d%%", job.ProgressPercent)
				if job.ETALabel != "" {
					fmt.Fprintf(out, " (%s)", job.ETALabel)
				}
				fmt.Fprintln(out)
				if job.OutputPath != "" {
					fmt.Fprintf(out, "  Output:     %s\n", job.OutputPath)
				}
				if job.YouTubeID != "" {
					fmt.Fprintf(out, "  Video URL:  https://youtu.be/%s\n", job.YouTubeID)
				}
				if log := strings.TrimSpace(job.Log); log != "" {
					fmt.Fprintln(out, "  Log:")
					for _, line := range strings.Split(log, "\n") {
						fmt.Fprintf(out, "    %s\n", line)
					}
				}
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Reset failed renders back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				count, err := store.RetryFailedRenders(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d job(s) reset for retry\n", count)
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a job from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				removed, err := store.Remove(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				if !removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Job %d not found\n", ids[0])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d removed\n", ids[0])
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearAll, clearFailed, clearPublished bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove published, failed, or all jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				var (
					count int64
					err   error
					label string
				)
				switch {
				case clearAll:
					count, err = store.Clear(cmd.Context())
					label = "job(s)"
				case clearFailed:
					count, err = store.ClearFailed(cmd.Context())
					label = "failed job(s)"
				default:
					count, err = store.ClearPublished(cmd.Context())
					label = "published job(s)"
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s\n", count, label)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearAll, "all", false, "Remove every job")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove jobs that failed in either phase")
	cmd.Flags().BoolVar(&clearPublished, "published", false, "Remove published jobs (default)")
	cmd.MarkFlagsMutuallyExclusive("all", "failed", "published")

	return cmd
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show queue counts and database diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				summary, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				dbHealth, err := store.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Jobs:       %d total\n", summary.Total)
				fmt.Fprintf(out, "  pending   %d\n", summary.Pending)
				fmt.Fprintf(out, "  rendering %d\n", summary.Rendering)
				fmt.Fprintf(out, "  waiting   %d\n", summary.Waiting)
				fmt.Fprintf(out, "  uploading %d\n", summary.Uploading)
				fmt.Fprintf(out, "  published %d\n", summary.Published)
				fmt.Fprintf(out, "  failed    %d\n", summary.Failed)
				fmt.Fprintf(out, "Database:   %s\n", dbHealth.DBPath)
				fmt.Fprintf(out, "  readable  %t\n", dbHealth.DatabaseReadable)
				fmt.Fprintf(out, "  integrity %t\n", dbHealth.IntegrityCheck)
				return nil
			})
		},
	}
}

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid job id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
