package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"loopforge/internal/config"
	"loopforge/internal/logging"
	"loopforge/internal/notifications"
	"loopforge/internal/queue"
	"loopforge/internal/services"
)

// Renderer drives a claimed job to a terminal render state.
type Renderer interface {
	Render(ctx context.Context, job *queue.Job) error
}

// Publisher drives a claimed job to a terminal upload state.
type Publisher interface {
	Upload(ctx context.Context, job *queue.Job) error
}

// Manager coordinates the render and upload lanes.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	renderer Renderer
	uploader Publisher
	notifier notifications.Service
	logger   *slog.Logger

	renderPoll time.Duration
	uploadPoll time.Duration
	errorRetry time.Duration

	renderSlots chan struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithIntervals overrides the lane polling intervals (used in tests).
func WithIntervals(renderPoll, uploadPoll, errorRetry time.Duration) ManagerOption {
	return func(m *Manager) {
		if renderPoll > 0 {
			m.renderPoll = renderPoll
		}
		if uploadPoll > 0 {
			m.uploadPoll = uploadPoll
		}
		if errorRetry > 0 {
			m.errorRetry = errorRetry
		}
	}
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, renderer Renderer, uploader Publisher, notifier notifications.Service, logger *slog.Logger, opts ...ManagerOption) *Manager {
	slots := cfg.Render.MaxConcurrent
	if slots < 1 {
		slots = 1
	}
	m := &Manager{
		cfg:         cfg,
		store:       store,
		renderer:    renderer,
		uploader:    uploader,
		notifier:    notifier,
		logger:      logging.NewComponentLogger(logger, "workflow"),
		renderPoll:  time.Duration(cfg.Workflow.RenderPollInterval) * time.Second,
		uploadPoll:  time.Duration(cfg.Workflow.UploadPollInterval) * time.Second,
		errorRetry:  time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		renderSlots: make(chan struct{}, slots),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(2)
	go m.runRenderLane(runCtx)
	go m.runUploadLane(runCtx)
	return nil
}

// Stop terminates background processing and waits for in-flight work.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) runRenderLane(ctx context.Context) {
	defer m.wg.Done()
	logger := m.logger.With(logging.String("lane", "render"))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		jobs, err := m.store.ListByRenderStatus(ctx, queue.RenderPending)
		if err != nil {
			m.tickError(ctx, logger, "render lane", err)
			continue
		}

		for _, job := range jobs {
			if !m.acquireRenderSlot(ctx) {
				return
			}
			claimed, err := m.store.ClaimForRender(ctx, job.ID)
			if err != nil || !claimed {
				m.releaseRenderSlot()
				if err != nil {
					logger.Error("claim render job", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
				}
				continue
			}

			m.wg.Add(1)
			go func(job *queue.Job) {
				defer m.wg.Done()
				defer m.releaseRenderSlot()
				m.renderOne(ctx, logger, job)
			}(job)
		}

		if !m.sleep(ctx, m.renderPoll) {
			return
		}
	}
}

func (m *Manager) renderOne(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	ctx = services.WithRequestID(ctx, uuid.NewString())
	if err := m.renderer.Render(ctx, job); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		if notifyErr := m.notifier.NotifyRenderFailed(ctx, job.Title, err); notifyErr != nil {
			logger.Warn("send render failure notification", logging.Error(notifyErr))
		}
		return
	}
	if notifyErr := m.notifier.NotifyRenderCompleted(ctx, job.Title); notifyErr != nil {
		logger.Warn("send render completion notification", logging.Error(notifyErr))
	}
}

// runUploadLane polls for rendered jobs whose scheduled time has passed.
// Uploads run one at a time: the platform throttles concurrent sessions per
// channel, and a single lane keeps bandwidth predictable.
func (m *Manager) runUploadLane(ctx context.Context) {
	defer m.wg.Done()
	logger := m.logger.With(logging.String("lane", "upload"))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		jobs, err := m.store.ListReadyForUpload(ctx)
		if err != nil {
			m.tickError(ctx, logger, "upload lane", err)
			continue
		}

		now := time.Now()
		for _, job := range jobs {
			if !job.Due(now) {
				continue
			}
			claimed, err := m.store.ClaimForUpload(ctx, job.ID)
			if err != nil {
				logger.Error("claim upload job", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
				continue
			}
			if !claimed {
				continue
			}
			m.uploadOne(ctx, logger, job)
		}

		if !m.sleep(ctx, m.uploadPoll) {
			return
		}
	}
}

func (m *Manager) uploadOne(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	ctx = services.WithRequestID(ctx, uuid.NewString())
	if err := m.uploader.Upload(ctx, job); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		if notifyErr := m.notifier.NotifyUploadFailed(ctx, job.Title, err); notifyErr != nil {
			logger.Warn("send upload failure notification", logging.Error(notifyErr))
		}
		return
	}
	fetched, err := m.store.GetByID(ctx, job.ID)
	videoID := ""
	if err == nil {
		videoID = fetched.YouTubeID
	}
	if notifyErr := m.notifier.NotifyUploadCompleted(ctx, job.Title, videoID); notifyErr != nil {
		logger.Warn("send upload completion notification", logging.Error(notifyErr))
	}
}

// tickError logs a lane failure and backs off. A bad tick never stops the
// lane; the next poll retries from scratch.
func (m *Manager) tickError(ctx context.Context, logger *slog.Logger, lane string, err error) {
	logger.Error("lane tick failed",
		logging.Error(err),
		logging.String(logging.FieldEventType, "lane_tick_failed"),
		logging.String(logging.FieldErrorHint, "check job database access"))
	if notifyErr := m.notifier.NotifyError(ctx, err, lane); notifyErr != nil {
		logger.Warn("send error notification", logging.Error(notifyErr))
	}
	m.sleep(ctx, m.errorRetry)
}

func (m *Manager) acquireRenderSlot(ctx context.Context) bool {
	select {
	case m.renderSlots <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *Manager) releaseRenderSlot() {
	<-m.renderSlots
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
