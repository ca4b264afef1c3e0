package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestInitTracer(t *testing.T) {
	tests := []struct {
		name        string
		serviceName string
		endpoint    string
		wantErr     bool
	}{
		{
			name:        "explicit endpoint",
			serviceName: ServiceName,
			endpoint:    "localhost:4318",
		},
		{
			name:        "default endpoint",
			serviceName: ServiceName,
			endpoint:    "",
		},
		{
			name:        "empty service name",
			serviceName: "",
			endpoint:    "localhost:4318",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			tp, err := InitTracer(ctx, tt.serviceName, tt.endpoint)
			if (err != nil) != tt.wantErr {
				t.Errorf("InitTracer() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if tp != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := Shutdown(shutdownCtx, tp); err != nil {
					t.Errorf("Shutdown() error = %v", err)
				}
			}
		})
	}
}

func TestShutdown(t *testing.T) {
	t.Run("shutdown with nil provider", func(t *testing.T) {
		if err := Shutdown(context.Background(), nil); err != nil {
			t.Errorf("Shutdown() with nil provider should not error, got: %v", err)
		}
	})
}

func TestTracer(t *testing.T) {
	_, span := Tracer("events").Start(context.Background(), "probe")
	defer span.End()
	if span == nil {
		t.Fatal("Tracer().Start() returned nil span")
	}
}
