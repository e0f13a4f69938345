package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrToolUnavailable marks failures caused by a missing external binary.
	ErrToolUnavailable = errors.New("external tool unavailable")
	// ErrEncodeFailure marks a render that started but did not finish cleanly.
	ErrEncodeFailure = errors.New("encode failure")
	// ErrAuthUnavailable marks missing or unusable upload credentials.
	ErrAuthUnavailable = errors.New("auth unavailable")
	// ErrUploadTransport marks network or protocol failures during upload.
	ErrUploadTransport = errors.New("upload transport error")
	ErrValidation      = errors.New("validation error")
	ErrConfiguration   = errors.New("configuration error")
	ErrTransient       = errors.New("transient failure")
)

// Wrap builds an error message that includes phase context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, phase, operation, message string, err error) error {
	detail := buildDetail(phase, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether a manual retry is worth suggesting to the user.
// Configuration and validation problems need fixing first; everything else
// may succeed on a clean re-run.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrValidation) && !errors.Is(err, ErrConfiguration)
}

func buildDetail(phase, operation, message string) string {
	parts := make([]string, 0, 3)
	if phase = strings.TrimSpace(phase); phase != "" {
		parts = append(parts, phase)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
