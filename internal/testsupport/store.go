package testsupport

import (
	"context"
	"testing"
	"time"

	"loopforge/internal/config"
	"loopforge/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a job for tests using sensible defaults, applying mutate
// (when non-nil) to the spec before submission.
func NewJob(t testing.TB, store *queue.Store, mutate func(*queue.Spec)) *queue.Job {
	t.Helper()

	spec := queue.Spec{
		VideoPath:     "/media/loop.mp4",
		AudioPath:     "/media/rain.mp3",
		DurationHours: 1,
		Watermark:     queue.WatermarkNone,
		MuteOriginal:  true,
		Title:         "Test Loop",
		Description:   "test description",
		Tags:          []string{"asmr", "sleep"},
		ScheduledAt:   time.Now().Add(time.Hour),
	}
	if mutate != nil {
		mutate(&spec)
	}

	job, err := store.Create(context.Background(), spec)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return job
}

// RenderSucceeded drives a job to render success for upload-phase tests.
func RenderSucceeded(t testing.TB, store *queue.Store, id int64, outputPath string) {
	t.Helper()

	ctx := context.Background()
	if claimed, err := store.ClaimForRender(ctx, id); err != nil || !claimed {
		t.Fatalf("ClaimForRender: claimed=%v err=%v", claimed, err)
	}
	if err := store.MarkRenderSucceeded(ctx, id, outputPath); err != nil {
		t.Fatalf("MarkRenderSucceeded: %v", err)
	}
}
