package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.UploadDir) == "" {
		problems = append(problems, "paths.upload_dir must be set")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		problems = append(problems, "paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir must be set")
	}
	if c.Render.MaxConcurrent < 1 {
		problems = append(problems, "render.max_concurrent must be at least 1")
	}
	if c.Upload.ChunkSizeMiB < 1 {
		problems = append(problems, "upload.chunk_size_mib must be at least 1")
	}
	switch strings.ToLower(strings.TrimSpace(c.Upload.PrivacyStatus)) {
	case "private", "unlisted", "public":
	default:
		problems = append(problems, fmt.Sprintf("upload.privacy_status %q is not one of private, unlisted, public", c.Upload.PrivacyStatus))
	}
	if c.Workflow.UploadPollInterval < 1 {
		problems = append(problems, "workflow.upload_poll_interval must be at least 1 second")
	}
	if c.Workflow.RenderPollInterval < 1 {
		problems = append(problems, "workflow.render_poll_interval must be at least 1 second")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not one of console, json", c.Logging.Format))
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}
