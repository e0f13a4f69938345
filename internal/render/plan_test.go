package render_test

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"loopforge/internal/queue"
	"loopforge/internal/render"
	"loopforge/internal/testsupport"
)

func TestBuildPlanWatermarkFilters(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	cases := []struct {
		mode   queue.WatermarkMode
		filter string
	}{
		{queue.WatermarkNone, ""},
		{queue.WatermarkCropOnly, "crop=in_w:in_h-86:0:0"},
		{queue.WatermarkBlur, "delogo=x=0:y=h-86:w=w:h=86"},
		{queue.WatermarkZoomTopLeft, "crop=in_w-150:in_h-86:0:0,scale=1920:1080:flags=lanczos"},
	}
	for _, tc := range cases {
		t.Run(string(tc.mode), func(t *testing.T) {
			job := &queue.Job{ID: 1, VideoPath: "/in/v.mp4", AudioPath: "/in/a.mp3", DurationHours: 1, Watermark: tc.mode, MuteOriginal: true}
			plan := render.BuildPlan(job, cfg, false, time.Unix(1700000000, 0))
			if plan.Filter != tc.filter {
				t.Fatalf("filter = %q, want %q", plan.Filter, tc.filter)
			}
			hasVF := slices.Contains(plan.Args, "-vf")
			if tc.filter == "" && hasVF {
				t.Fatalf("no filter expected but -vf present: %v", plan.Args)
			}
			if tc.filter != "" && !hasVF {
				t.Fatalf("-vf missing: %v", plan.Args)
			}
		})
	}
}

func TestBuildPlanAudioRouting(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := queue.Job{ID: 7, VideoPath: "/in/v.mp4", AudioPath: "/in/a.mp3", DurationHours: 2, Watermark: queue.WatermarkNone}

	muted := base
	muted.MuteOriginal = true
	plan := render.BuildPlan(&muted, cfg, false, time.Now())
	joined := strings.Join(plan.Args, " ")
	if !strings.Contains(joined, "-map 0:v:0 -map 1:a:0") {
		t.Fatalf("muted routing should map ambience track only: %v", plan.Args)
	}
	if strings.Contains(joined, "amix") {
		t.Fatalf("muted routing should not mix: %v", plan.Args)
	}

	mixed := base
	mixed.MuteOriginal = false
	plan = render.BuildPlan(&mixed, cfg, false, time.Now())
	joined = strings.Join(plan.Args, " ")
	if !strings.Contains(joined, "[0:a][1:a]amix=inputs=2:duration=shortest[aout]") {
		t.Fatalf("mixed routing should amix both tracks: %v", plan.Args)
	}
	if !strings.Contains(joined, "-map [aout]") {
		t.Fatalf("mixed routing should map the amix output: %v", plan.Args)
	}
}

func TestBuildPlanDurationAndCodecs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	job := &queue.Job{ID: 3, VideoPath: "/in/v.mp4", AudioPath: "/in/a.mp3", DurationHours: 8, Watermark: queue.WatermarkNone, MuteOriginal: true}

	plan := render.BuildPlan(job, cfg, true, time.Now())
	joined := strings.Join(plan.Args, " ")
	if !strings.Contains(joined, "-t 28800") {
		t.Fatalf("expected 8h cutoff: %v", plan.Args)
	}
	if plan.Encoder != "h264_nvenc" || plan.Preset != "p1" {
		t.Fatalf("hardware plan should use nvenc/p1, got %s/%s", plan.Encoder, plan.Preset)
	}
	if !strings.Contains(joined, "-c:a aac -b:a 192k") {
		t.Fatalf("audio codec settings missing: %v", plan.Args)
	}
	if !strings.Contains(joined, "-stream_loop -1 -i /in/v.mp4 -stream_loop -1 -i /in/a.mp3") {
		t.Fatalf("both inputs should loop indefinitely: %v", plan.Args)
	}

	plan = render.BuildPlan(job, cfg, false, time.Now())
	if plan.Encoder != "libx264" || plan.Preset != "ultrafast" {
		t.Fatalf("software plan should use libx264/ultrafast, got %s/%s", plan.Encoder, plan.Preset)
	}
}

func TestOutputPathNaming(t *testing.T) {
	now := time.Unix(1700000000, 0)
	got := render.OutputPath("/out", 12, now)
	want := filepath.Join("/out", fmt.Sprintf("loop_12_%d.mp4", now.Unix()))
	if got != want {
		t.Fatalf("OutputPath = %q, want %q", got, want)
	}
}

func TestBuildPlanOutputIsLastArg(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	job := &queue.Job{ID: 5, VideoPath: "/in/v.mp4", AudioPath: "/in/a.mp3", DurationHours: 1, Watermark: queue.WatermarkBlur, MuteOriginal: false}
	plan := render.BuildPlan(job, cfg, false, time.Now())
	if plan.Args[len(plan.Args)-1] != plan.OutputPath {
		t.Fatalf("output path should be the final argument: %v", plan.Args)
	}
}
