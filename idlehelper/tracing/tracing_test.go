package tracing

import (
	"context"
	"testing"
)

func TestSetup_Disabled(t *testing.T) {
	tests := []struct {
		name     string
		enabled  bool
		endpoint string
	}{
		{name: "disabled", enabled: false, endpoint: "http://localhost:4318"},
		{name: "no endpoint", enabled: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := Setup(context.Background(), tt.enabled, tt.endpoint, "test")
			if err != nil {
				t.Fatalf("Setup() error = %v", err)
			}
			if err = shutdown(context.Background()); err != nil {
				t.Errorf("shutdown() error = %v", err)
			}
		})
	}
}
