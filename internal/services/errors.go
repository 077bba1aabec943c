package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput marks unreadable sources, unparseable scene or zone
	// files, and bad CLI values. Reported before any encoding begins.
	ErrInvalidInput = errors.New("invalid input")
	// ErrToolMissing marks an external binary that is not on PATH.
	ErrToolMissing = errors.New("external tool unavailable")
	// ErrEncoderRun marks a failed encoder subprocess: non-zero exit,
	// frame-count mismatch, or truncated output.
	ErrEncoderRun = errors.New("encoder run failure")
	// ErrMetric marks a metric tool failure during target quality search.
	ErrMetric = errors.New("metric failure")
	// ErrFrameSource marks a frame source stall or error; it is handled the
	// same way as an encoder run failure.
	ErrFrameSource = errors.New("frame source failure")
	// ErrJournal marks progress journal corruption.
	ErrJournal = errors.New("journal corruption")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrEncoderRun
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether an error class is worth retrying on the same
// chunk. Input and configuration problems never heal by retrying.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrToolMissing):
		return false
	default:
		return true
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
