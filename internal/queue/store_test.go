package queue_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"loopforge/internal/queue"
	"loopforge/internal/testsupport"
)

func TestCreateAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	scheduled := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
	job := testsupport.NewJob(t, store, func(spec *queue.Spec) {
		spec.Title = "Rain Loop"
		spec.Watermark = queue.WatermarkZoomTopLeft
		spec.ScheduledAt = scheduled
		spec.Tags = []string{"rain", "asmr", "8 hours"}
	})

	if job.ID == 0 {
		t.Fatal("expected job ID to be assigned")
	}
	if job.RenderStatus != queue.RenderPending || job.UploadStatus != queue.UploadIdle {
		t.Fatalf("new job should be pending/idle, got %s/%s", job.RenderStatus, job.UploadStatus)
	}
	if job.ProgressPercent != 0 {
		t.Fatalf("new job should have progress 0, got %d", job.ProgressPercent)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Title != "Rain Loop" {
		t.Fatalf("unexpected title %q", fetched.Title)
	}
	if !fetched.ScheduledAt.Equal(scheduled) {
		t.Fatalf("scheduled_at mismatch: want %v got %v", scheduled, fetched.ScheduledAt)
	}
	if len(fetched.Tags) != 3 || fetched.Tags[0] != "rain" || fetched.Tags[2] != "8 hours" {
		t.Fatalf("tags lost order or content: %v", fetched.Tags)
	}
	if fetched.Watermark != queue.WatermarkZoomTopLeft {
		t.Fatalf("unexpected watermark %q", fetched.Watermark)
	}
}

func TestGetMissingJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, err := store.GetByID(context.Background(), 404)
	if !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateValidatesSpec(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*queue.Spec)
	}{
		{"missing video", func(s *queue.Spec) { s.VideoPath = "" }},
		{"missing audio", func(s *queue.Spec) { s.AudioPath = "" }},
		{"duration too short", func(s *queue.Spec) { s.DurationHours = 0.05 }},
		{"duration too long", func(s *queue.Spec) { s.DurationHours = 25 }},
		{"unknown watermark", func(s *queue.Spec) { s.Watermark = "vignette" }},
		{"missing title", func(s *queue.Spec) { s.Title = " " }},
		{"missing schedule", func(s *queue.Spec) { s.ScheduledAt = time.Time{} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec := queue.Spec{
				VideoPath:     "/media/loop.mp4",
				AudioPath:     "/media/rain.mp3",
				DurationHours: 1,
				Watermark:     queue.WatermarkNone,
				Title:         "ok",
				ScheduledAt:   time.Now(),
			}
			tc.mutate(&spec)
			if _, err := store.Create(ctx, spec); !errors.Is(err, queue.ErrInvalidSpec) {
				t.Fatalf("expected ErrInvalidSpec, got %v", err)
			}
		})
	}
}

func TestListReadyForUploadFilter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	pending := testsupport.NewJob(t, store, nil)
	rendered := testsupport.NewJob(t, store, nil)
	failed := testsupport.NewJob(t, store, nil)
	uploaded := testsupport.NewJob(t, store, nil)

	testsupport.RenderSucceeded(t, store, rendered.ID, "/out/a.mp4")

	if claimed, err := store.ClaimForRender(ctx, failed.ID); err != nil || !claimed {
		t.Fatalf("claim: %v %v", claimed, err)
	}
	if err := store.MarkRenderFailed(ctx, failed.ID); err != nil {
		t.Fatalf("MarkRenderFailed: %v", err)
	}

	testsupport.RenderSucceeded(t, store, uploaded.ID, "/out/b.mp4")
	if claimed, err := store.ClaimForUpload(ctx, uploaded.ID); err != nil || !claimed {
		t.Fatalf("ClaimForUpload: %v %v", claimed, err)
	}

	ready, err := store.ListReadyForUpload(ctx)
	if err != nil {
		t.Fatalf("ListReadyForUpload: %v", err)
	}
	if len(ready) != 1 || ready[0].ID != rendered.ID {
		t.Fatalf("expected only job %d ready, got %v", rendered.ID, readyIDs(ready))
	}
	_ = pending
}

func readyIDs(jobs []*queue.Job) []int64 {
	ids := make([]int64, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.ID)
	}
	return ids
}

func TestClaimForUploadIsAtMostOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, nil)
	testsupport.RenderSucceeded(t, store, job.ID, "/out/a.mp4")

	first, err := store.ClaimForUpload(ctx, job.ID)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	second, err := store.ClaimForUpload(ctx, job.ID)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if !first || second {
		t.Fatalf("expected exactly one successful claim, got first=%v second=%v", first, second)
	}
}

func TestClaimForUploadRequiresRenderSuccess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, nil)
	claimed, err := store.ClaimForUpload(ctx, job.ID)
	if err != nil {
		t.Fatalf("ClaimForUpload: %v", err)
	}
	if claimed {
		t.Fatal("claimed a job whose render has not succeeded")
	}
}

func TestUploadTransitionRejectedBeforeRenderSuccess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, nil)
	err := store.UpdateUploadStatus(ctx, job.ID, queue.UploadUploading)
	if !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.UploadStatus != queue.UploadIdle {
		t.Fatalf("upload status should stay idle, got %s", fetched.UploadStatus)
	}
}

func TestRenderTerminalStatesRejectFurtherTransitions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, nil)
	testsupport.RenderSucceeded(t, store, job.ID, "/out/a.mp4")

	if err := store.UpdateRenderStatus(ctx, job.ID, queue.RenderRendering); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition from success, got %v", err)
	}
	if err := store.MarkRenderFailed(ctx, job.ID); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition failing a succeeded render, got %v", err)
	}
}

func TestMarkRenderSucceededSetsUploadEligibility(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, nil)
	testsupport.RenderSucceeded(t, store, job.ID, "/out/final.mp4")

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.RenderStatus != queue.RenderSuccess {
		t.Fatalf("render status: %s", fetched.RenderStatus)
	}
	if fetched.UploadStatus != queue.UploadWaitingSchedule {
		t.Fatalf("upload status: %s", fetched.UploadStatus)
	}
	if fetched.ProgressPercent != 100 {
		t.Fatalf("progress should be 100 on render success, got %d", fetched.ProgressPercent)
	}
	if fetched.OutputPath != "/out/final.mp4" {
		t.Fatalf("output path: %q", fetched.OutputPath)
	}
}

func TestUpdateProgressClamps(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, nil)

	if err := store.UpdateProgress(ctx, job.ID, 150, "soon"); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	fetched, _ := store.GetByID(ctx, job.ID)
	if fetched.ProgressPercent != 100 {
		t.Fatalf("expected clamp to 100, got %d", fetched.ProgressPercent)
	}

	if err := store.UpdateProgress(ctx, job.ID, -5, ""); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	fetched, _ = store.GetByID(ctx, job.ID)
	if fetched.ProgressPercent != 0 {
		t.Fatalf("expected clamp to 0, got %d", fetched.ProgressPercent)
	}
}

func TestAppendLogIsAppendOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, nil)

	messages := []string{"render started", "mode: crop only", "render finished"}
	for _, msg := range messages {
		if err := store.AppendLog(ctx, job.ID, msg); err != nil {
			t.Fatalf("AppendLog: %v", err)
		}
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(fetched.Log), "\n")
	if len(lines) != len(messages) {
		t.Fatalf("expected %d log lines, got %d: %q", len(messages), len(lines), fetched.Log)
	}
	for i, msg := range messages {
		if !strings.HasSuffix(lines[i], msg) {
			t.Fatalf("line %d = %q, want suffix %q", i, lines[i], msg)
		}
		if !strings.HasPrefix(lines[i], "[") {
			t.Fatalf("line %d missing timestamp prefix: %q", i, lines[i])
		}
	}
}

func TestMarkUploadOutcomes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	success := testsupport.NewJob(t, store, nil)
	testsupport.RenderSucceeded(t, store, success.ID, "/out/a.mp4")
	if _, err := store.ClaimForUpload(ctx, success.ID); err != nil {
		t.Fatalf("ClaimForUpload: %v", err)
	}
	if err := store.MarkUploadSucceeded(ctx, success.ID, "yt-abc123"); err != nil {
		t.Fatalf("MarkUploadSucceeded: %v", err)
	}
	fetched, _ := store.GetByID(ctx, success.ID)
	if fetched.UploadStatus != queue.UploadSuccess || fetched.YouTubeID != "yt-abc123" || fetched.ProgressPercent != 100 {
		t.Fatalf("unexpected terminal state: %s %q %d", fetched.UploadStatus, fetched.YouTubeID, fetched.ProgressPercent)
	}

	failure := testsupport.NewJob(t, store, nil)
	testsupport.RenderSucceeded(t, store, failure.ID, "/out/b.mp4")
	if _, err := store.ClaimForUpload(ctx, failure.ID); err != nil {
		t.Fatalf("ClaimForUpload: %v", err)
	}
	if err := store.MarkUploadFailed(ctx, failure.ID); err != nil {
		t.Fatalf("MarkUploadFailed: %v", err)
	}
	fetched, _ = store.GetByID(ctx, failure.ID)
	if fetched.UploadStatus != queue.UploadFailed {
		t.Fatalf("upload status: %s", fetched.UploadStatus)
	}
	// The artifact reference stays for manual resubmission.
	if fetched.OutputPath != "/out/b.mp4" {
		t.Fatalf("output path should survive upload failure, got %q", fetched.OutputPath)
	}
}

func TestRetryFailedRenders(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, nil)
	if claimed, err := store.ClaimForRender(ctx, job.ID); err != nil || !claimed {
		t.Fatalf("claim: %v %v", claimed, err)
	}
	if err := store.MarkRenderFailed(ctx, job.ID); err != nil {
		t.Fatalf("MarkRenderFailed: %v", err)
	}

	count, err := store.RetryFailedRenders(ctx, job.ID)
	if err != nil {
		t.Fatalf("RetryFailedRenders: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 retried, got %d", count)
	}
	fetched, _ := store.GetByID(ctx, job.ID)
	if fetched.RenderStatus != queue.RenderPending || fetched.ProgressPercent != 0 {
		t.Fatalf("retry should reset to pending/0, got %s/%d", fetched.RenderStatus, fetched.ProgressPercent)
	}
}

func TestHealthSummary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, nil)
	done := testsupport.NewJob(t, store, nil)
	testsupport.RenderSucceeded(t, store, done.ID, "/out/a.mp4")

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 2 || health.Pending != 1 || health.Waiting != 1 {
		t.Fatalf("unexpected summary: %+v", health)
	}
}
