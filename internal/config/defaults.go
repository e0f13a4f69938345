package config

const (
	defaultUploadDir            = "~/.local/share/loopforge/uploads"
	defaultOutputDir            = "~/.local/share/loopforge/outputs"
	defaultLogDir               = "~/.local/share/loopforge/logs"
	defaultFFmpegBinary         = "ffmpeg"
	defaultAcceleratorProbe     = "nvidia-smi"
	defaultAudioBitrate         = "192k"
	defaultMaxConcurrentRenders = 2
	defaultClientSecretsFile    = "~/.config/loopforge/client_secrets.json"
	defaultTokenFile            = "~/.config/loopforge/token.json"
	defaultUploadChunkMiB       = 8
	defaultUploadCategoryID     = "22"
	defaultUploadPrivacy        = "private"
	defaultRenderPollInterval   = 5
	defaultUploadPollInterval   = 20
	defaultErrorRetryInterval   = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultNotifyRequestTimeout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			UploadDir: defaultUploadDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Render: Render{
			FFmpegBinary:     defaultFFmpegBinary,
			AcceleratorProbe: defaultAcceleratorProbe,
			AudioBitrate:     defaultAudioBitrate,
			MaxConcurrent:    defaultMaxConcurrentRenders,
		},
		Upload: Upload{
			ClientSecretsFile: defaultClientSecretsFile,
			TokenFile:         defaultTokenFile,
			ChunkSizeMiB:      defaultUploadChunkMiB,
			CategoryID:        defaultUploadCategoryID,
			PrivacyStatus:     defaultUploadPrivacy,
		},
		Workflow: Workflow{
			RenderPollInterval: defaultRenderPollInterval,
			UploadPollInterval: defaultUploadPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Render:         true,
			Upload:         true,
			Errors:         true,
		},
	}
}
