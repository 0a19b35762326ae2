package service_test

import (
	"errors"
	"fmt"
	"testing"

	"ikedadada/go-ptor/internal/domain/service"
)

func TestCoreError_IsKind(t *testing.T) {
	err := service.NewCoreError(service.KindProtocolViolation, "window overflow")
	if !service.IsKind(err, service.KindProtocolViolation) {
		t.Fatal("expected IsKind to match")
	}
	if service.IsKind(err, service.KindStreamTimeout) {
		t.Fatal("expected IsKind to reject the wrong kind")
	}
}

func TestCoreError_IsKind_ThroughWrapping(t *testing.T) {
	cause := errors.New("underlying")
	err := service.NewCoreError(service.KindConnectionFail, "dial entry relay").WithCause(cause)
	wrapped := fmt.Errorf("build circuit: %w", err)

	if !service.IsKind(wrapped, service.KindConnectionFail) {
		t.Fatal("expected IsKind to unwrap through fmt.Errorf")
	}
	if !errors.Is(wrapped, cause) {
		t.Fatal("expected errors.Is to reach the original cause")
	}
}

func TestCoreError_NotACoreError(t *testing.T) {
	if service.IsKind(errors.New("plain"), service.KindInterrupted) {
		t.Fatal("expected IsKind to report false for a non-CoreError")
	}
}
