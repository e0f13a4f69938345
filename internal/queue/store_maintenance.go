package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// HealthSummary describes aggregated job counts per key lifecycle state.
type HealthSummary struct {
	Total     int
	Pending   int
	Rendering int
	Waiting   int
	Uploading int
	Published int
	Failed    int
}

// DatabaseHealth captures diagnostic information about the job database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// Stats returns job counts grouped by render and upload status.
func (s *Store) Stats(ctx context.Context) (map[RenderStatus]int, map[UploadStatus]int, error) {
	renderCounts := make(map[RenderStatus]int)
	uploadCounts := make(map[UploadStatus]int)

	rows, err := s.db.QueryContext(ctx, `SELECT render_status, upload_status, COUNT(1) FROM jobs GROUP BY render_status, upload_status`)
	if err != nil {
		return nil, nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var render, upload string
		var count int
		if err := rows.Scan(&render, &upload, &count); err != nil {
			return nil, nil, err
		}
		renderCounts[RenderStatus(render)] += count
		uploadCounts[UploadStatus(upload)] += count
	}
	return renderCounts, uploadCounts, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	renderCounts, uploadCounts, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range renderCounts {
		health.Total += count
		switch status {
		case RenderPending:
			health.Pending += count
		case RenderRendering:
			health.Rendering += count
		case RenderFailed:
			health.Failed += count
		}
	}
	for status, count := range uploadCounts {
		switch status {
		case UploadWaitingSchedule:
			health.Waiting += count
		case UploadUploading:
			health.Uploading += count
		case UploadSuccess:
			health.Published += count
		case UploadFailed:
			health.Failed += count
		}
	}
	return health, nil
}

// CheckHealth returns diagnostic information about the job database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("job database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat job database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("job database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("job database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping job database: %w", err)
	}
	health.DatabaseReadable = true

	var tableName string
	row := s.db.QueryRowContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'jobs'")
	if err := row.Scan(&tableName); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			health.Error = err.Error()
			return health, fmt.Errorf("query table info: %w", err)
		}
	} else {
		health.TableExists = true
	}

	if health.TableExists {
		row = s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM jobs")
		if err := row.Scan(&health.TotalJobs); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count jobs: %w", err)
		}
	}

	row = s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrityResult string
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}

// RetryFailedRenders moves render-failed jobs back to pending so the render
// lane picks them up again. This is an explicit user action, never automatic.
func (s *Store) RetryFailedRenders(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE jobs SET render_status = ?, progress_percent = 0, eta_label = '', updated_at = ?
            WHERE render_status = ?`,
			RenderPending,
			nowStamp(),
			RenderFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed renders: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := statusPlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, RenderPending, nowStamp())
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, RenderFailed)
	query := `UPDATE jobs SET render_status = ?, progress_percent = 0, eta_label = '', updated_at = ?
        WHERE id IN (` + placeholders + `) AND render_status = ?`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected jobs: %w", err)
	}
	return res.RowsAffected()
}

// Remove deletes a job by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearPublished removes jobs whose upload completed.
func (s *Store) ClearPublished(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE upload_status = ?`, UploadSuccess)
	if err != nil {
		return 0, fmt.Errorf("clear published: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes jobs that failed in either phase.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE render_status = ? OR upload_status = ?`, RenderFailed, UploadFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all jobs.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return res.RowsAffected()
}
