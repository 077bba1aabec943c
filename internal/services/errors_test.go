package services_test

import (
	"errors"
	"strings"
	"testing"

	"lathe/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	inner := errors.New("exit status 1")
	err := services.Wrap(services.ErrEncoderRun, "encode", "aomenc", "chunk 3", inner)
	if !errors.Is(err, services.ErrEncoderRun) {
		t.Fatalf("marker lost: %v", err)
	}
	if !errors.Is(err, inner) {
		t.Fatalf("cause lost: %v", err)
	}
	for _, want := range []string{"encode", "aomenc", "chunk 3"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("detail %q missing from %q", want, err.Error())
		}
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := services.Wrap(services.ErrInvalidInput, "plan", "zones", "overlap", nil)
	if !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("marker lost: %v", err)
	}
}

func TestRetryable(t *testing.T) {
	if services.Retryable(services.Wrap(services.ErrInvalidInput, "plan", "", "", nil)) {
		t.Fatal("invalid input should not be retryable")
	}
	if services.Retryable(services.Wrap(services.ErrToolMissing, "probe", "", "", nil)) {
		t.Fatal("missing tool should not be retryable")
	}
	if !services.Retryable(services.Wrap(services.ErrEncoderRun, "encode", "", "", nil)) {
		t.Fatal("encoder failure should be retryable")
	}
	if !services.Retryable(services.Wrap(services.ErrMetric, "probe", "", "", nil)) {
		t.Fatal("metric failure should be retryable")
	}
}
