package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/aulalibre/go-aula-backend/internal/config"
)

func restoreGlobals(t *testing.T) {
	t.Helper()
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
}

func enabledConfig(name string) config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    true,
		Endpoint:    "localhost:4317",
		ServiceName: name,
		SampleRatio: 1.0,
	}
}

func TestSetup_DisabledIsNoOp(t *testing.T) {
	restoreGlobals(t)

	prev := otel.GetTracerProvider()
	shutdown, err := Setup(context.Background(), config.OTELConfig{Enabled: false}, "dev")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if otel.GetTracerProvider() != prev {
		t.Fatal("disabled setup must not replace the tracer provider")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown: %v", err)
	}
}

func TestSetup_InstallsProviderAndPropagator(t *testing.T) {
	restoreGlobals(t)

	shutdown, err := Setup(context.Background(), enabledConfig("aula-test"), "v1.0.0")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatal("expected *sdktrace.TracerProvider installed globally")
	}

	// A span must be creatable without a reachable collector (lazy export).
	_, span := otel.Tracer("smoke").Start(context.Background(), "root")
	span.End()

	ct, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	_ = shutdown(ct)
}

func TestSetup_ExporterErrorLeavesGlobalsIntact(t *testing.T) {
	restoreGlobals(t)

	orig := newExporter
	defer func() { newExporter = orig }()
	newExporter = func(ctx context.Context, client otlptrace.Client) (*otlptrace.Exporter, error) {
		return nil, errors.New("exporter down")
	}

	prev := otel.GetTracerProvider()
	if _, err := Setup(context.Background(), enabledConfig("aula-fail"), "v0"); err == nil {
		t.Fatal("expected error")
	}
	if otel.GetTracerProvider() != prev {
		t.Fatal("tracer provider changed on failure")
	}
}

func TestSetup_ResourceErrorPropagates(t *testing.T) {
	restoreGlobals(t)

	orig := newResource
	defer func() { newResource = orig }()
	newResource = func(ctx context.Context, serviceName, version string) (*resource.Resource, error) {
		return nil, errors.New("resource down")
	}

	if _, err := Setup(context.Background(), enabledConfig("aula-res"), "v0"); err == nil {
		t.Fatal("expected error")
	}
}
