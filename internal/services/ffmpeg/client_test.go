package ffmpeg_test

import (
	"context"
	"strings"
	"testing"

	"loopforge/internal/services/ffmpeg"
	"loopforge/internal/testsupport"
)

func TestEncodeStreamsOutputLines(t *testing.T) {
	dir := t.TempDir()
	script := testsupport.WriteScript(t, dir, "fake-ffmpeg", "#!/bin/sh\n"+
		"printf 'frame= 10 time=00:00:05.00 speed=2x\\r' >&2\n"+
		"printf 'frame= 20 time=00:00:10.00 speed=2x\\n' >&2\n"+
		"exit 0\n")

	client, err := ffmpeg.New(script)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var lines []string
	if err := client.Encode(context.Background(), nil, func(line string) {
		lines = append(lines, line)
	}); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if len(lines) != 2 {
		t.Fatalf("expected 2 lines (one per \\r/\\n token), got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "time=00:00:05.00") {
		t.Fatalf("unexpected first line: %q", lines[0])
	}
	if !strings.Contains(lines[1], "time=00:00:10.00") {
		t.Fatalf("unexpected second line: %q", lines[1])
	}
}

func TestEncodeReportsNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	script := testsupport.WriteScript(t, dir, "fake-ffmpeg", "#!/bin/sh\n"+
		"echo 'No such file or directory' >&2\n"+
		"exit 1\n")

	client, err := ffmpeg.New(script)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var lines []string
	err = client.Encode(context.Background(), nil, func(line string) {
		lines = append(lines, line)
	})
	if err == nil {
		t.Fatal("expected error on non-zero exit")
	}
	if len(lines) != 1 || !strings.Contains(lines[0], "No such file") {
		t.Fatalf("diagnostic output not forwarded: %v", lines)
	}
}

func TestAvailable(t *testing.T) {
	dir := t.TempDir()
	script := testsupport.WriteScript(t, dir, "fake-ffmpeg", "#!/bin/sh\nexit 0\n")

	client, err := ffmpeg.New(script)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.Available(); err != nil {
		t.Fatalf("expected stub to be available: %v", err)
	}

	missing, err := ffmpeg.New("definitely-not-on-path-ffmpeg")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := missing.Available(); err == nil {
		t.Fatal("expected missing binary to be unavailable")
	}
}

func TestNewRequiresBinary(t *testing.T) {
	if _, err := ffmpeg.New("  "); err == nil {
		t.Fatal("expected error for empty binary")
	}
}

func TestEncodeHonorsContext(t *testing.T) {
	dir := t.TempDir()
	script := testsupport.WriteScript(t, dir, "fake-ffmpeg", "#!/bin/sh\nsleep 30\n")

	client, err := ffmpeg.New(script)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.Encode(ctx, nil, nil); err == nil {
		t.Fatal("expected error when context already cancelled")
	}
}
