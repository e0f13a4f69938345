package queue

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// logTimeFormat matches the timestamp prefix on every job log entry.
const logTimeFormat = "2006-01-02 15:04:05"

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// UpdateRenderStatus moves the render state machine, rejecting transitions
// the machine does not permit. The check and write are a single conditional
// UPDATE, so concurrent callers race safely: exactly one wins.
func (s *Store) UpdateRenderStatus(ctx context.Context, id int64, to RenderStatus) error {
	if _, ok := renderStatuses[to]; !ok {
		return fmt.Errorf("%w: unknown render status %q", ErrInvalidTransition, to)
	}

	froms := renderTransitionSources(to)
	if len(froms) == 0 {
		return fmt.Errorf("%w: render status %q is not reachable", ErrInvalidTransition, to)
	}

	query := `UPDATE jobs SET render_status = ?, updated_at = ? WHERE id = ? AND render_status IN (` + statusPlaceholders(len(froms)) + `)`
	args := []any{to, nowStamp(), id}
	for _, from := range froms {
		args = append(args, from)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update render status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return s.explainRenderRejection(ctx, id, to)
	}
	return nil
}

// UpdateUploadStatus moves the upload state machine. Transitions out of idle
// and into uploading additionally require render success; the guard is part
// of the conditional UPDATE so dispatch stays at-most-once under races.
func (s *Store) UpdateUploadStatus(ctx context.Context, id int64, to UploadStatus) error {
	if _, ok := uploadStatuses[to]; !ok {
		return fmt.Errorf("%w: unknown upload status %q", ErrInvalidTransition, to)
	}

	froms := uploadTransitionSources(to)
	if len(froms) == 0 {
		return fmt.Errorf("%w: upload status %q is not reachable", ErrInvalidTransition, to)
	}

	query := `UPDATE jobs SET upload_status = ?, updated_at = ? WHERE id = ? AND upload_status IN (` + statusPlaceholders(len(froms)) + `)`
	args := []any{to, nowStamp(), id}
	for _, from := range froms {
		args = append(args, from)
	}
	if uploadRequiresRenderSuccess(to) {
		query += ` AND render_status = ?`
		args = append(args, RenderSuccess)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update upload status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return s.explainUploadRejection(ctx, id, to)
	}
	return nil
}

// ClaimForRender atomically flips a pending job to rendering. It returns
// false when another worker already claimed the job.
func (s *Store) ClaimForRender(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET render_status = ?, progress_percent = 0, eta_label = '', updated_at = ?
         WHERE id = ? AND render_status = ?`,
		RenderRendering,
		nowStamp(),
		id,
		RenderPending,
	)
	if err != nil {
		return false, fmt.Errorf("claim for render: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClaimForUpload atomically flips a due job to uploading before dispatch, so
// the job no longer satisfies the ready filter on subsequent scheduler ticks.
// Returns false when the job was already claimed or is not upload-eligible.
func (s *Store) ClaimForUpload(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET upload_status = ?, progress_percent = 0, eta_label = '', updated_at = ?
         WHERE id = ? AND upload_status = ? AND render_status = ?`,
		UploadUploading,
		nowStamp(),
		id,
		UploadWaitingSchedule,
		RenderSuccess,
	)
	if err != nil {
		return false, fmt.Errorf("claim for upload: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpdateProgress writes the live progress estimate for the active phase.
// Percent is clamped to [0,100].
func (s *Store) UpdateProgress(ctx context.Context, id int64, percent int, etaLabel string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET progress_percent = ?, eta_label = ?, updated_at = ? WHERE id = ?`,
		clampPercent(percent),
		etaLabel,
		nowStamp(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return requireRow(res.RowsAffected())
}

// AppendLog appends a timestamped entry to the job's log. The append happens
// inside SQLite via string concatenation, so prior content is never replaced
// and entries keep their order.
func (s *Store) AppendLog(ctx context.Context, id int64, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil
	}
	entry := fmt.Sprintf("[%s] %s\n", time.Now().UTC().Format(logTimeFormat), message)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET log = log || ?, updated_at = ? WHERE id = ?`,
		entry,
		nowStamp(),
		id,
	)
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return requireRow(res.RowsAffected())
}

// MarkRenderSucceeded records the terminal render success state in one
// atomic statement: progress 100, output artifact, and upload eligibility.
func (s *Store) MarkRenderSucceeded(ctx context.Context, id int64, outputPath string) error {
	if strings.TrimSpace(outputPath) == "" {
		return fmt.Errorf("mark render succeeded: output path required")
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET render_status = ?, upload_status = ?, progress_percent = 100,
            eta_label = '', output_path = ?, updated_at = ?
         WHERE id = ? AND render_status = ?`,
		RenderSuccess,
		UploadWaitingSchedule,
		outputPath,
		nowStamp(),
		id,
		RenderRendering,
	)
	if err != nil {
		return fmt.Errorf("mark render succeeded: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return s.explainRenderRejection(ctx, id, RenderSuccess)
	}
	return nil
}

// MarkRenderFailed records the terminal render failure state. The upload
// machine stays wherever it was (idle for a job that never rendered).
func (s *Store) MarkRenderFailed(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET render_status = ?, eta_label = '', updated_at = ?
         WHERE id = ? AND render_status IN (?, ?)`,
		RenderFailed,
		nowStamp(),
		id,
		RenderPending,
		RenderRendering,
	)
	if err != nil {
		return fmt.Errorf("mark render failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return s.explainRenderRejection(ctx, id, RenderFailed)
	}
	return nil
}

// MarkUploadSucceeded records the platform identifier alongside the terminal
// upload success state.
func (s *Store) MarkUploadSucceeded(ctx context.Context, id int64, externalID string) error {
	if strings.TrimSpace(externalID) == "" {
		return fmt.Errorf("mark upload succeeded: external id required")
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET upload_status = ?, progress_percent = 100, eta_label = '',
            youtube_id = ?, updated_at = ?
         WHERE id = ? AND upload_status = ?`,
		UploadSuccess,
		externalID,
		nowStamp(),
		id,
		UploadUploading,
	)
	if err != nil {
		return fmt.Errorf("mark upload succeeded: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return s.explainUploadRejection(ctx, id, UploadSuccess)
	}
	return nil
}

// MarkUploadFailed records the terminal upload failure state. The rendered
// artifact is left on disk for manual resubmission.
func (s *Store) MarkUploadFailed(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET upload_status = ?, eta_label = '', updated_at = ?
         WHERE id = ? AND upload_status = ?`,
		UploadFailed,
		nowStamp(),
		id,
		UploadUploading,
	)
	if err != nil {
		return fmt.Errorf("mark upload failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return s.explainUploadRejection(ctx, id, UploadFailed)
	}
	return nil
}

func (s *Store) explainRenderRejection(ctx context.Context, id int64, to RenderStatus) error {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !allowedRenderTransition(job.RenderStatus, to) {
		return fmt.Errorf("%w: render %s -> %s for job %d", ErrInvalidTransition, job.RenderStatus, to, id)
	}
	return fmt.Errorf("%w: render %s -> %s for job %d lost to a concurrent writer", ErrInvalidTransition, job.RenderStatus, to, id)
}

func (s *Store) explainUploadRejection(ctx context.Context, id int64, to UploadStatus) error {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !allowedUploadTransition(job.RenderStatus, job.UploadStatus, to) {
		return fmt.Errorf("%w: upload %s -> %s for job %d (render %s)", ErrInvalidTransition, job.UploadStatus, to, id, job.RenderStatus)
	}
	return fmt.Errorf("%w: upload %s -> %s for job %d lost to a concurrent writer", ErrInvalidTransition, job.UploadStatus, to, id)
}

func renderTransitionSources(to RenderStatus) []RenderStatus {
	var froms []RenderStatus
	for from, nexts := range renderTransitions {
		for _, next := range nexts {
			if next == to {
				froms = append(froms, from)
			}
		}
	}
	return froms
}

func uploadTransitionSources(to UploadStatus) []UploadStatus {
	var froms []UploadStatus
	for from, nexts := range uploadTransitions {
		for _, next := range nexts {
			if next == to {
				froms = append(froms, from)
			}
		}
	}
	return froms
}

func uploadRequiresRenderSuccess(to UploadStatus) bool {
	return to == UploadWaitingSchedule || to == UploadUploading
}

func statusPlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func requireRow(affected int64, err error) error {
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
