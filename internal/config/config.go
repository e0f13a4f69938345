package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	UploadDir string `toml:"upload_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
}

// Render contains configuration for the encoder invocation.
type Render struct {
	FFmpegBinary     string `toml:"ffmpeg_binary"`
	AcceleratorProbe string `toml:"accelerator_probe"`
	AudioBitrate     string `toml:"audio_bitrate"`
	MaxConcurrent    int    `toml:"max_concurrent"`
}

// Upload contains configuration for the publishing client.
type Upload struct {
	ClientSecretsFile string `toml:"client_secrets_file"`
	TokenFile         string `toml:"token_file"`
	ChunkSizeMiB      int    `toml:"chunk_size_mib"`
	CategoryID        string `toml:"category_id"`
	PrivacyStatus     string `toml:"privacy_status"`
}

// Workflow contains daemon timing and polling intervals, in seconds.
type Workflow struct {
	RenderPollInterval int `toml:"render_poll_interval"`
	UploadPollInterval int `toml:"upload_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Render         bool   `toml:"render"`
	Upload         bool   `toml:"upload"`
	Errors         bool   `toml:"errors"`
}

// Config is the root configuration document.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Render        Render        `toml:"render"`
	Upload        Upload        `toml:"upload"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the location Load consults when no explicit
// path is provided.
func DefaultConfigPath() string {
	return expandHome("~/.config/loopforge/config.toml")
}

// Load reads configuration from path (or the default location when path is
// empty), applies defaults for missing values, expands ~ in paths, and
// validates the result. A missing file yields defaults, not an error; the
// returned string is the path that was consulted.
func Load(path string) (*Config, string, error) {
	resolved := strings.TrimSpace(path)
	if resolved == "" {
		resolved = DefaultConfigPath()
	} else {
		resolved = expandHome(resolved)
	}

	cfg := Default()
	raw, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if err := toml.Unmarshal(raw, &cfg); err != nil {
			return nil, resolved, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// Defaults only.
	default:
		return nil, resolved, fmt.Errorf("read config %s: %w", resolved, err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, resolved, err
	}
	return &cfg, resolved, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	resolved := expandHome(strings.TrimSpace(path))
	if resolved == "" {
		resolved = DefaultConfigPath()
	}
	if _, err := os.Stat(resolved); err == nil {
		return fmt.Errorf("config file already exists at %s", resolved)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureDirectories creates the upload, output, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.UploadDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) normalize() {
	c.Paths.UploadDir = expandHome(c.Paths.UploadDir)
	c.Paths.OutputDir = expandHome(c.Paths.OutputDir)
	c.Paths.LogDir = expandHome(c.Paths.LogDir)
	c.Upload.ClientSecretsFile = expandHome(c.Upload.ClientSecretsFile)
	c.Upload.TokenFile = expandHome(c.Upload.TokenFile)

	if strings.TrimSpace(c.Render.FFmpegBinary) == "" {
		c.Render.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Render.AcceleratorProbe) == "" {
		c.Render.AcceleratorProbe = defaultAcceleratorProbe
	}
	if strings.TrimSpace(c.Render.AudioBitrate) == "" {
		c.Render.AudioBitrate = defaultAudioBitrate
	}
	if c.Render.MaxConcurrent <= 0 {
		c.Render.MaxConcurrent = defaultMaxConcurrentRenders
	}
	if c.Upload.ChunkSizeMiB <= 0 {
		c.Upload.ChunkSizeMiB = defaultUploadChunkMiB
	}
	if strings.TrimSpace(c.Upload.CategoryID) == "" {
		c.Upload.CategoryID = defaultUploadCategoryID
	}
	if strings.TrimSpace(c.Upload.PrivacyStatus) == "" {
		c.Upload.PrivacyStatus = defaultUploadPrivacy
	}
	if c.Workflow.RenderPollInterval <= 0 {
		c.Workflow.RenderPollInterval = defaultRenderPollInterval
	}
	if c.Workflow.UploadPollInterval <= 0 {
		c.Workflow.UploadPollInterval = defaultUploadPollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaultLogFormat
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func expandHome(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if trimmed == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return trimmed
	}
	if strings.HasPrefix(trimmed, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, trimmed[2:])
		}
	}
	return trimmed
}
