package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"loopforge/internal/config"
	"loopforge/internal/queue"
)

// scheduleLayouts are accepted by --schedule, tried in order. Layouts without
// a zone are interpreted in local time.
var scheduleLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		videoPath   string
		audioPath   string
		hours       float64
		watermark   string
		muteFlag    bool
		title       string
		description string
		tags        []string
		schedule    string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Queue a new loop render and scheduled upload",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, ok := queue.ParseWatermarkMode(watermark)
			if !ok {
				return fmt.Errorf("unknown watermark mode %q (none, crop_only, blur, zoom_top_left)", watermark)
			}
			scheduledAt, err := parseSchedule(schedule)
			if err != nil {
				return err
			}
			video, err := filepath.Abs(strings.TrimSpace(videoPath))
			if err != nil {
				return fmt.Errorf("resolve video path: %w", err)
			}
			audio, err := filepath.Abs(strings.TrimSpace(audioPath))
			if err != nil {
				return fmt.Errorf("resolve audio path: %w", err)
			}

			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				job, err := store.Create(cmd.Context(), queue.Spec{
					VideoPath:     video,
					AudioPath:     audio,
					DurationHours: hours,
					Watermark:     mode,
					MuteOriginal:  muteFlag,
					Title:         title,
					Description:   description,
					Tags:          tags,
					ScheduledAt:   scheduledAt,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d queued: %q renders for %.1fh, uploads at %s\n",
					job.ID, job.Title, job.DurationHours, job.ScheduledAt.Local().Format("2006-01-02 15:04"))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&videoPath, "video", "", "Source video loop file")
	cmd.Flags().StringVar(&audioPath, "audio", "", "Ambience audio file")
	cmd.Flags().Float64Var(&hours, "hours", 1, "Output duration in hours")
	cmd.Flags().StringVar(&watermark, "watermark", "none", "Watermark handling: none, crop_only, blur, zoom_top_left")
	cmd.Flags().BoolVar(&muteFlag, "mute-original", true, "Replace the source audio instead of mixing it in")
	cmd.Flags().StringVar(&title, "title", "", "Video title")
	cmd.Flags().StringVar(&description, "description", "", "Video description")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Video tags (comma separated)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "Upload time (RFC3339 or \"2006-01-02 15:04\")")
	_ = cmd.MarkFlagRequired("video")
	_ = cmd.MarkFlagRequired("audio")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("schedule")

	return cmd
}

func parseSchedule(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("schedule is required")
	}
	for _, layout := range scheduleLayouts {
		var (
			parsed time.Time
			err    error
		)
		if layout == time.RFC3339 {
			parsed, err = time.Parse(layout, value)
		} else {
			parsed, err = time.ParseInLocation(layout, value, time.Local)
		}
		if err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse schedule %q", value)
}
