package observability

import (
	"context"
	"testing"

	"github.com/railzwaylabs/recon/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTracerProvider(t *testing.T) {
	tests := []struct {
		name    string
		tracing config.TracingConfig
		wantNil bool
		wantErr error
	}{
		{name: "disabled without endpoint", wantNil: true},
		{name: "http exporter", tracing: config.TracingConfig{Endpoint: "localhost:4318", Protocol: "http", Insecure: true}},
		{name: "grpc exporter", tracing: config.TracingConfig{Endpoint: "localhost:4317", Protocol: "grpc", Insecure: true, SampleRatio: 0.5}},
		{name: "unknown protocol", tracing: config.TracingConfig{Endpoint: "localhost:4317", Protocol: "thrift"}, wantErr: ErrUnsupportedProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Config{AppEnv: "test", Tracing: tt.tracing}
			tp, err := NewTracerProvider(context.Background(), cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, tp)
				assert.False(t, TracingEnabled(cfg))
				return
			}
			require.NotNil(t, tp)
			assert.True(t, TracingEnabled(cfg))
			assert.NoError(t, tp.Shutdown(context.Background()))
		})
	}
}

func TestTracerWithoutProvider(t *testing.T) {
	_, span := Tracer("test").Start(context.Background(), "noop")
	defer span.End()
	assert.False(t, span.SpanContext().IsSampled())
}
