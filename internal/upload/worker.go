package upload

import (
	"context"
	"log/slog"
	"time"

	"loopforge/internal/config"
	"loopforge/internal/logging"
	"loopforge/internal/queue"
	"loopforge/internal/services"
	"loopforge/internal/services/youtube"
)

const persistInterval = 2 * time.Second

// Worker publishes one claimed job at a time.
type Worker struct {
	store    *queue.Store
	cfg      *config.Config
	uploader youtube.Uploader
	logger   *slog.Logger
	now      func() time.Time
}

// NewWorker constructs an upload worker.
func NewWorker(store *queue.Store, cfg *config.Config, uploader youtube.Uploader, logger *slog.Logger) *Worker {
	return &Worker{
		store:    store,
		cfg:      cfg,
		uploader: uploader,
		logger:   logging.NewComponentLogger(logger, "upload"),
		now:      time.Now,
	}
}

// Upload drives a claimed job to a terminal upload state. The returned error
// is already recorded on the job.
func (w *Worker) Upload(ctx context.Context, job *queue.Job) error {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithPhase(ctx, "upload")
	log := w.logger.With(logging.Int64(logging.FieldJobID, job.ID))
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		log = log.With(logging.String(logging.FieldRequestID, requestID))
	}

	meta := youtube.Metadata{
		Title:         job.Title,
		Description:   job.Description,
		Tags:          job.Tags,
		CategoryID:    w.cfg.Upload.CategoryID,
		PrivacyStatus: w.cfg.Upload.PrivacyStatus,
	}

	log.Info("upload started", logging.String("artifact", job.OutputPath))
	w.appendLog(ctx, job.ID, "upload started: "+job.OutputPath)

	sampler := logging.NewProgressSampler(10)
	var lastPersist time.Time
	videoID, err := w.uploader.Upload(ctx, job.OutputPath, meta, func(fraction float64) {
		// 100 is reserved for a confirmed accepted upload.
		percent := int(fraction * 100)
		if percent > 99 {
			percent = 99
		}
		if sampler.ShouldLog(percent, "upload") {
			log.Info("upload progress", logging.Int("percent", percent))
		}
		now := w.now()
		if now.Sub(lastPersist) < persistInterval {
			return
		}
		lastPersist = now
		if err := w.store.UpdateProgress(context.Background(), job.ID, percent, ""); err != nil {
			log.Warn("persist progress", logging.Error(err))
		}
	})
	if err != nil {
		log.Error("upload failed", logging.Error(err))
		w.appendLog(ctx, job.ID, "upload failed: "+err.Error())
		w.appendLog(ctx, job.ID, "artifact retained for manual resubmission: "+job.OutputPath)
		if markErr := w.store.MarkUploadFailed(ctx, job.ID); markErr != nil {
			log.Error("record upload failure", logging.Error(markErr))
		}
		return err
	}

	if err := w.store.MarkUploadSucceeded(ctx, job.ID, videoID); err != nil {
		return services.Wrap(services.ErrTransient, "upload", "persist", "record upload success", err)
	}
	w.appendLog(ctx, job.ID, "upload finished: https://youtu.be/"+videoID)
	log.Info("upload finished", logging.String("video_id", videoID))
	return nil
}

func (w *Worker) appendLog(ctx context.Context, jobID int64, message string) {
	if err := w.store.AppendLog(ctx, jobID, message); err != nil {
		w.logger.Warn("append job log", logging.Int64(logging.FieldJobID, jobID), logging.Error(err))
	}
}
