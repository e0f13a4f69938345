// Package ffmpeg wraps FFmpeg CLI execution. It streams the tool's merged
// output line by line so callers can parse encode progress while the process
// runs.
package ffmpeg
