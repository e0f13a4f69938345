package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"loopforge/internal/config"
	"loopforge/internal/deps"
	"loopforge/internal/logging"
	"loopforge/internal/queue"
	"loopforge/internal/services"
	"loopforge/internal/services/ffmpeg"
)

// persistInterval throttles progress writes to the job store. FFmpeg emits a
// stats line several times a second; the database only needs a coarse view.
const persistInterval = 2 * time.Second

// diagnosticTailLines bounds how much encoder output a failed render appends
// to the job log.
const diagnosticTailLines = 15

// Worker renders one claimed job at a time. The workflow manager owns
// claiming and concurrency; the worker assumes the job is already in the
// rendering state.
type Worker struct {
	store   *queue.Store
	cfg     *config.Config
	encoder ffmpeg.Encoder
	logger  *slog.Logger
	now     func() time.Time
}

// NewWorker constructs a render worker.
func NewWorker(store *queue.Store, cfg *config.Config, encoder ffmpeg.Encoder, logger *slog.Logger) *Worker {
	return &Worker{
		store:   store,
		cfg:     cfg,
		encoder: encoder,
		logger:  logging.NewComponentLogger(logger, "render"),
		now:     time.Now,
	}
}

// Render drives a claimed job to a terminal render state. The returned error
// is already recorded on the job; callers only need it for notification and
// logging decisions.
func (w *Worker) Render(ctx context.Context, job *queue.Job) error {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithPhase(ctx, "render")
	log := w.logger.With(logging.Int64(logging.FieldJobID, job.ID))
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		log = log.With(logging.String(logging.FieldRequestID, requestID))
	}

	if err := w.encoder.Available(); err != nil {
		wrapped := services.Wrap(services.ErrToolUnavailable, "render", "probe", "ffmpeg not available", err)
		w.fail(ctx, job, log, wrapped, nil)
		return wrapped
	}

	accel := deps.DetectAccelerator(ctx, w.cfg.Render.AcceleratorProbe)
	plan := BuildPlan(job, w.cfg, accel.Available, w.now())

	log.Info("render started",
		logging.String("encoder", plan.Encoder),
		logging.String("preset", plan.Preset),
		logging.Int("target_seconds", job.TargetSeconds()))
	w.appendLog(ctx, job.ID, fmt.Sprintf("render started: encoder=%s preset=%s filter=%q target=%ds",
		plan.Encoder, plan.Preset, plan.Filter, job.TargetSeconds()))
	if !accel.Available && accel.Detail != "" {
		w.appendLog(ctx, job.ID, "hardware encoding unavailable: "+accel.Detail)
	}

	tracker := newProgressTracker(w, job, log)
	if err := w.encoder.Encode(ctx, plan.Args, tracker.observe); err != nil {
		wrapped := services.Wrap(services.ErrEncodeFailure, "render", "encode", "ffmpeg exited abnormally", err)
		w.fail(ctx, job, log, wrapped, tracker.tail())
		return wrapped
	}

	if _, err := os.Stat(plan.OutputPath); err != nil {
		wrapped := services.Wrap(services.ErrEncodeFailure, "render", "verify", "ffmpeg exited cleanly but produced no output", err)
		w.fail(ctx, job, log, wrapped, tracker.tail())
		return wrapped
	}

	if err := w.store.MarkRenderSucceeded(ctx, job.ID, plan.OutputPath); err != nil {
		return services.Wrap(services.ErrTransient, "render", "persist", "record render success", err)
	}
	w.appendLog(ctx, job.ID, "render finished: "+plan.OutputPath)
	log.Info("render finished", logging.String("output", plan.OutputPath))
	return nil
}

func (w *Worker) fail(ctx context.Context, job *queue.Job, log *slog.Logger, cause error, tail []string) {
	log.Error("render failed", logging.Error(cause))
	w.appendLog(ctx, job.ID, "render failed: "+cause.Error())
	for _, line := range tail {
		w.appendLog(ctx, job.ID, "  ffmpeg: "+line)
	}
	if err := w.store.MarkRenderFailed(ctx, job.ID); err != nil {
		log.Error("record render failure", logging.Error(err))
	}
}

func (w *Worker) appendLog(ctx context.Context, jobID int64, message string) {
	if err := w.store.AppendLog(ctx, jobID, message); err != nil {
		w.logger.Warn("append job log", logging.Int64(logging.FieldJobID, jobID), logging.Error(err))
	}
}

// progressTracker folds encoder output lines into throttled store writes,
// sampled log lines, and a bounded diagnostic tail.
type progressTracker struct {
	worker      *Worker
	job         *queue.Job
	log         *slog.Logger
	sampler     *logging.ProgressSampler
	started     time.Time
	lastPersist time.Time
	recent      []string
}

func newProgressTracker(w *Worker, job *queue.Job, log *slog.Logger) *progressTracker {
	return &progressTracker{
		worker:  w,
		job:     job,
		log:     log,
		sampler: logging.NewProgressSampler(5),
		started: w.now(),
	}
}

func (t *progressTracker) observe(line string) {
	t.remember(line)

	encoded, ok := ParseEncodedSeconds(line)
	if !ok {
		return
	}
	now := t.worker.now()
	est, ok := EstimateProgress(encoded, t.job.TargetSeconds(), now.Sub(t.started), now)
	if !ok {
		return
	}

	if t.sampler.ShouldLog(est.Percent, "render") {
		t.log.Info("render progress",
			logging.Int("percent", est.Percent),
			logging.Float64("speed", est.Speed),
			logging.String("eta", est.ETALabel))
	}
	if now.Sub(t.lastPersist) < persistInterval {
		return
	}
	t.lastPersist = now
	if err := t.worker.store.UpdateProgress(context.Background(), t.job.ID, est.Percent, est.ETALabel); err != nil {
		t.log.Warn("persist progress", logging.Error(err))
	}
}

func (t *progressTracker) remember(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.recent = append(t.recent, line)
	if len(t.recent) > diagnosticTailLines {
		t.recent = t.recent[len(t.recent)-diagnosticTailLines:]
	}
}

func (t *progressTracker) tail() []string {
	return t.recent
}
