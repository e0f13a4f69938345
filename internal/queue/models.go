package queue

import (
	"strings"
	"time"
)

// RenderStatus represents the render phase lifecycle of a job.
type RenderStatus string

const (
	RenderPending   RenderStatus = "pending"
	RenderRendering RenderStatus = "rendering"
	RenderSuccess   RenderStatus = "success"
	RenderFailed    RenderStatus = "failed"
)

// UploadStatus represents the upload phase lifecycle of a job.
type UploadStatus string

const (
	UploadIdle            UploadStatus = "idle"
	UploadWaitingSchedule UploadStatus = "waiting_schedule"
	UploadUploading       UploadStatus = "uploading"
	UploadSuccess         UploadStatus = "success"
	UploadFailed          UploadStatus = "failed"
)

// WatermarkMode selects the geometric transform that removes or obscures the
// overlay region in the source loop.
type WatermarkMode string

const (
	WatermarkNone        WatermarkMode = "none"
	WatermarkCropOnly    WatermarkMode = "crop_only"
	WatermarkBlur        WatermarkMode = "blur"
	WatermarkZoomTopLeft WatermarkMode = "zoom_top_left"
)

var watermarkModes = map[WatermarkMode]struct{}{
	WatermarkNone:        {},
	WatermarkCropOnly:    {},
	WatermarkBlur:        {},
	WatermarkZoomTopLeft: {},
}

// ParseWatermarkMode converts a string into a known WatermarkMode.
func ParseWatermarkMode(value string) (WatermarkMode, bool) {
	normalized := WatermarkMode(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := watermarkModes[normalized]
	return normalized, ok
}

var renderStatuses = map[RenderStatus]struct{}{
	RenderPending:   {},
	RenderRendering: {},
	RenderSuccess:   {},
	RenderFailed:    {},
}

var uploadStatuses = map[UploadStatus]struct{}{
	UploadIdle:            {},
	UploadWaitingSchedule: {},
	UploadUploading:       {},
	UploadSuccess:         {},
	UploadFailed:          {},
}

// ParseRenderStatus converts a string into a known RenderStatus.
func ParseRenderStatus(value string) (RenderStatus, bool) {
	normalized := RenderStatus(strings.ToLower(strings.TrimSpace(value)))
	_, ok := renderStatuses[normalized]
	return normalized, ok
}

// ParseUploadStatus converts a string into a known UploadStatus.
func ParseUploadStatus(value string) (UploadStatus, bool) {
	normalized := UploadStatus(strings.ToLower(strings.TrimSpace(value)))
	_, ok := uploadStatuses[normalized]
	return normalized, ok
}

// IsTerminal reports whether the render phase can no longer change.
func (s RenderStatus) IsTerminal() bool {
	return s == RenderSuccess || s == RenderFailed
}

// IsTerminal reports whether the upload phase can no longer change.
func (s UploadStatus) IsTerminal() bool {
	return s == UploadSuccess || s == UploadFailed
}

// Job represents one submitted render+publish request. Identity and
// submission fields are immutable; status fields are mutated by exactly one
// worker per phase.
type Job struct {
	ID              int64
	VideoPath       string
	AudioPath       string
	DurationHours   float64
	Watermark       WatermarkMode
	MuteOriginal    bool
	Title           string
	Description     string
	Tags            []string
	ScheduledAt     time.Time
	RenderStatus    RenderStatus
	UploadStatus    UploadStatus
	ProgressPercent int
	ETALabel        string
	OutputPath      string
	YouTubeID       string
	Log             string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TargetSeconds returns the hard output duration cutoff in seconds.
func (j *Job) TargetSeconds() int {
	return int(j.DurationHours * 3600)
}

// ReadyForUpload reports whether the job satisfies the scheduler filter.
func (j *Job) ReadyForUpload() bool {
	return j.RenderStatus == RenderSuccess && j.UploadStatus == UploadWaitingSchedule
}

// Due reports whether the job's schedule has arrived relative to now.
func (j *Job) Due(now time.Time) bool {
	return !j.ScheduledAt.After(now)
}

// Spec describes a job submission. All fields are required except
// Description and Tags.
type Spec struct {
	VideoPath     string
	AudioPath     string
	DurationHours float64
	Watermark     WatermarkMode
	MuteOriginal  bool
	Title         string
	Description   string
	Tags          []string
	ScheduledAt   time.Time
}

const (
	// MinDurationHours and MaxDurationHours bound the target duration.
	MinDurationHours = 0.1
	MaxDurationHours = 24.0
)

// joinTags serializes the ordered tag list for storage.
func joinTags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		cleaned = append(cleaned, tag)
	}
	return strings.Join(cleaned, ",")
}

// splitTags restores the ordered tag list from storage.
func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tags = append(tags, part)
	}
	return tags
}

func clampPercent(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
