package telemetry

import (
	"context"
	"testing"
)

func TestSetupTracingDisabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "", "test")
	if err != nil {
		t.Fatalf("SetupTracing() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}
