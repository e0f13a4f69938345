package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"loopforge/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				target = config.DefaultConfigPath()
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.WriteSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sample configuration written to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVar(&targetPath, "path", "", "Where to write the sample config")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "[paths]\nupload_dir = %q\noutput_dir = %q\nlog_dir = %q\n\n",
				cfg.Paths.UploadDir, cfg.Paths.OutputDir, cfg.Paths.LogDir)
			fmt.Fprintf(out, "[render]\nffmpeg_binary = %q\naccelerator_probe = %q\naudio_bitrate = %q\nmax_concurrent = %d\n\n",
				cfg.Render.FFmpegBinary, cfg.Render.AcceleratorProbe, cfg.Render.AudioBitrate, cfg.Render.MaxConcurrent)
			fmt.Fprintf(out, "[upload]\nclient_secrets_file = %q\ntoken_file = %q\nchunk_size_mib = %d\ncategory_id = %q\nprivacy_status = %q\n\n",
				cfg.Upload.ClientSecretsFile, cfg.Upload.TokenFile, cfg.Upload.ChunkSizeMiB, cfg.Upload.CategoryID, cfg.Upload.PrivacyStatus)
			fmt.Fprintf(out, "[workflow]\nrender_poll_interval = %d\nupload_poll_interval = %d\nerror_retry_interval = %d\n\n",
				cfg.Workflow.RenderPollInterval, cfg.Workflow.UploadPollInterval, cfg.Workflow.ErrorRetryInterval)
			fmt.Fprintf(out, "[logging]\nformat = %q\nlevel = %q\n",
				cfg.Logging.Format, cfg.Logging.Level)
			return nil
		},
	}
}
