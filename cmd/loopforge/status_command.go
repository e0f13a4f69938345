package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"loopforge/internal/config"
	"loopforge/internal/deps"
	"loopforge/internal/queue"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check external dependencies and configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				fmt.Fprintln(out, "Dependencies:")
				statuses := deps.CheckBinaries(deps.Default(cfg))
				for _, status := range statuses {
					printDepStatus(out, status, colorize)
				}
				if missing := deps.MissingRequired(statuses); len(missing) > 0 {
					fmt.Fprintf(out, "\n%d required dependency missing; rendering will fail until resolved\n", len(missing))
				}

				accel := deps.DetectAccelerator(cmd.Context(), cfg.Render.AcceleratorProbe)
				if accel.Available {
					fmt.Fprintln(out, "\nHardware encoding: available (h264_nvenc)")
				} else {
					fmt.Fprintf(out, "\nHardware encoding: unavailable, using libx264 (%s)\n", accel.Detail)
				}

				fmt.Fprintln(out, "\nPaths:")
				fmt.Fprintf(out, "  uploads  %s\n", cfg.Paths.UploadDir)
				fmt.Fprintf(out, "  outputs  %s\n", cfg.Paths.OutputDir)
				fmt.Fprintf(out, "  logs     %s\n", cfg.Paths.LogDir)
				fmt.Fprintf(out, "  database %s\n", store.Path())

				fmt.Fprintln(out, "\nUpload credentials:")
				printFileStatus(out, "client secrets", cfg.Upload.ClientSecretsFile, colorize)
				printFileStatus(out, "token", cfg.Upload.TokenFile, colorize)
				return nil
			})
		},
	}
}

func printDepStatus(out io.Writer, status deps.Status, colorize bool) {
	label := "OK"
	color := ansiGreen
	detail := status.Command
	if !status.Available {
		detail = status.Detail
		if status.Optional {
			label, color = "WARN", ansiYellow
		} else {
			label, color = "MISSING", ansiRed
		}
	}
	line := fmt.Sprintf("  %-12s [%s] %s", status.Name, label, detail)
	if colorize {
		line = color + line + ansiReset
	}
	fmt.Fprintln(out, line)
}

func printFileStatus(out io.Writer, name, path string, colorize bool) {
	label, color := "OK", ansiGreen
	if _, err := os.Stat(path); err != nil {
		label, color = "MISSING", ansiYellow
	}
	line := fmt.Sprintf("  %-14s [%s] %s", name, label, path)
	if colorize {
		line = color + line + ansiReset
	}
	fmt.Fprintln(out, line)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
