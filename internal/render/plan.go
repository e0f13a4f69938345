package render

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"loopforge/internal/config"
	"loopforge/internal/queue"
)

// Encoder settings per hardware availability. NVENC uses its fastest preset;
// the software fallback mirrors that with ultrafast so an 8-hour render stays
// feasible on CPU.
const (
	hardwareEncoder = "h264_nvenc"
	hardwarePreset  = "p1"
	softwareEncoder = "libx264"
	softwarePreset  = "ultrafast"
)

// Watermark filter graphs. The source footage carries a 86px banner at the
// bottom edge; each mode removes or obscures it differently.
const (
	filterCropOnly    = "crop=in_w:in_h-86:0:0"
	filterBlur        = "delogo=x=0:y=h-86:w=w:h=86"
	filterZoomTopLeft = "crop=in_w-150:in_h-86:0:0,scale=1920:1080:flags=lanczos"
)

// Plan is a fully resolved FFmpeg invocation for one job.
type Plan struct {
	Args       []string
	OutputPath string
	Encoder    string
	Preset     string
	Filter     string
}

// BuildPlan derives the FFmpeg argument list for a job. The inputs loop
// indefinitely and the -t cutoff ends the encode at the job's target
// duration, so the output length is exact regardless of source lengths.
func BuildPlan(job *queue.Job, cfg *config.Config, hardwareAvailable bool, now time.Time) Plan {
	plan := Plan{
		OutputPath: OutputPath(cfg.Paths.OutputDir, job.ID, now),
		Encoder:    softwareEncoder,
		Preset:     softwarePreset,
		Filter:     watermarkFilter(job.Watermark),
	}
	if hardwareAvailable {
		plan.Encoder = hardwareEncoder
		plan.Preset = hardwarePreset
	}

	args := []string{
		"-y",
		"-stream_loop", "-1", "-i", job.VideoPath,
		"-stream_loop", "-1", "-i", job.AudioPath,
	}
	if plan.Filter != "" {
		args = append(args, "-vf", plan.Filter)
	}
	if job.MuteOriginal {
		args = append(args, "-map", "0:v:0", "-map", "1:a:0")
	} else {
		args = append(args,
			"-filter_complex", "[0:a][1:a]amix=inputs=2:duration=shortest[aout]",
			"-map", "0:v:0", "-map", "[aout]",
		)
	}
	args = append(args,
		"-t", strconv.Itoa(job.TargetSeconds()),
		"-c:v", plan.Encoder,
		"-preset", plan.Preset,
		"-c:a", "aac",
		"-b:a", cfg.Render.AudioBitrate,
		plan.OutputPath,
	)
	plan.Args = args
	return plan
}

// OutputPath names the rendered artifact. The unix timestamp keeps re-renders
// of the same job from clobbering earlier output.
func OutputPath(outputDir string, jobID int64, now time.Time) string {
	return filepath.Join(outputDir, fmt.Sprintf("loop_%d_%d.mp4", jobID, now.Unix()))
}

func watermarkFilter(mode queue.WatermarkMode) string {
	switch mode {
	case queue.WatermarkCropOnly:
		return filterCropOnly
	case queue.WatermarkBlur:
		return filterBlur
	case queue.WatermarkZoomTopLeft:
		return filterZoomTopLeft
	default:
		return ""
	}
}
