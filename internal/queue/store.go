package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"loopforge/internal/config"
)

// Store manages job persistence backed by SQLite. It is safe for concurrent
// use by render workers, the upload scheduler, and CLI readers.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the job database under the configured log
// directory and verifies the schema version.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "jobs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Create inserts a new job from a validated spec and returns the stored row.
// New jobs start as pending/idle with progress 0; scheduled_at is write-once
// and never updated afterwards.
func (s *Store) Create(ctx context.Context, spec Spec) (*Job, error) {
	if err := validateSpec(spec); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
            video_path, audio_path, duration_hours, watermark_mode, mute_original,
            title, description, tags, scheduled_at,
            render_status, upload_status, progress_percent, eta_label, log,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, '', '', ?, ?)`,
		spec.VideoPath,
		spec.AudioPath,
		spec.DurationHours,
		string(spec.Watermark),
		boolToInt(spec.MuteOriginal),
		spec.Title,
		spec.Description,
		joinTags(spec.Tags),
		spec.ScheduledAt.UTC().Format(time.RFC3339Nano),
		RenderPending,
		UploadIdle,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

func validateSpec(spec Spec) error {
	if strings.TrimSpace(spec.VideoPath) == "" {
		return fmt.Errorf("%w: video path required", ErrInvalidSpec)
	}
	if strings.TrimSpace(spec.AudioPath) == "" {
		return fmt.Errorf("%w: audio path required", ErrInvalidSpec)
	}
	if spec.DurationHours < MinDurationHours || spec.DurationHours > MaxDurationHours {
		return fmt.Errorf("%w: duration %.2f hours outside %.1f-%.1f", ErrInvalidSpec, spec.DurationHours, MinDurationHours, MaxDurationHours)
	}
	if _, ok := watermarkModes[spec.Watermark]; !ok {
		return fmt.Errorf("%w: unknown watermark mode %q", ErrInvalidSpec, spec.Watermark)
	}
	if strings.TrimSpace(spec.Title) == "" {
		return fmt.Errorf("%w: title required", ErrInvalidSpec)
	}
	if spec.ScheduledAt.IsZero() {
		return fmt.Errorf("%w: scheduled time required", ErrInvalidSpec)
	}
	return nil
}

// GetByID fetches a job by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns all jobs ordered by creation, newest first.
func (s *Store) List(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListByRenderStatus returns jobs matching a render status, oldest first.
func (s *Store) ListByRenderStatus(ctx context.Context, status RenderStatus) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE render_status = ? ORDER BY id`, status)
	if err != nil {
		return nil, fmt.Errorf("list by render status: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListReadyForUpload returns jobs whose render succeeded and whose upload is
// waiting on its schedule, oldest first. Due-time filtering happens in the
// scheduler so a single query serves every tick.
func (s *Store) ListReadyForUpload(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE render_status = ? AND upload_status = ? ORDER BY scheduled_at`,
		RenderSuccess,
		UploadWaitingSchedule,
	)
	if err != nil {
		return nil, fmt.Errorf("list ready for upload: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func collectJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

const jobColumns = "id, video_path, audio_path, duration_hours, watermark_mode, mute_original, title, description, tags, scheduled_at, render_status, upload_status, progress_percent, eta_label, output_path, youtube_id, log, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id            int64
		videoPath     string
		audioPath     string
		durationHours float64
		watermark     string
		muteOriginal  int64
		title         string
		description   string
		tags          string
		scheduledRaw  string
		renderStatus  string
		uploadStatus  string
		percent       int
		etaLabel      string
		outputPath    sql.NullString
		youtubeID     sql.NullString
		log           string
		createdRaw    string
		updatedRaw    string
	)

	if err := scanner.Scan(
		&id,
		&videoPath,
		&audioPath,
		&durationHours,
		&watermark,
		&muteOriginal,
		&title,
		&description,
		&tags,
		&scheduledRaw,
		&renderStatus,
		&uploadStatus,
		&percent,
		&etaLabel,
		&outputPath,
		&youtubeID,
		&log,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		VideoPath:       videoPath,
		AudioPath:       audioPath,
		DurationHours:   durationHours,
		Watermark:       WatermarkMode(watermark),
		MuteOriginal:    muteOriginal != 0,
		Title:           title,
		Description:     description,
		Tags:            splitTags(tags),
		RenderStatus:    RenderStatus(renderStatus),
		UploadStatus:    UploadStatus(uploadStatus),
		ProgressPercent: percent,
		ETALabel:        etaLabel,
		OutputPath:      outputPath.String,
		YouTubeID:       youtubeID.String,
		Log:             log,
	}

	if scheduled, err := parseTimeString(scheduledRaw); err == nil {
		job.ScheduledAt = scheduled
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
