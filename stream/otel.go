package stream

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	otelLog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"chromestream/event"
	"chromestream/logger"
)

// MirrorOptions configures the optional OTLP/HTTP copy of the stream.
type MirrorOptions struct {
	// Endpoint is the OTLP logs endpoint, scheme included. Empty disables
	// the mirror unless FromEnv finds one.
	Endpoint string
	// FromEnv falls back to OTEL_EXPORTER_OTLP_LOGS_ENDPOINT then
	// OTEL_EXPORTER_OTLP_ENDPOINT when Endpoint is empty.
	FromEnv     bool
	Headers     map[string]string
	ServiceName string
	Timeout     time.Duration
}

// Mirror copies each submitted record to an OTLP log exporter. A nil Mirror
// is valid and does nothing, so the write path never branches on
// configuration.
type Mirror struct {
	provider *sdklog.LoggerProvider
	logger   otelLog.Logger
	timeout  time.Duration
}

func newMirror(opts *MirrorOptions) (*Mirror, error) {
	if opts == nil {
		return nil, nil
	}
	endpoint := resolveMirrorEndpoint(opts)
	if endpoint == "" {
		return nil, nil
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("mirror endpoint must include scheme (http or https)")
	}

	expOpts := []otlploghttp.Option{otlploghttp.WithEndpointURL(endpoint)}
	if len(opts.Headers) > 0 {
		expOpts = append(expOpts, otlploghttp.WithHeaders(opts.Headers))
	}
	if opts.Timeout > 0 {
		expOpts = append(expOpts, otlploghttp.WithTimeout(opts.Timeout))
	}

	exp, err := otlploghttp.New(context.Background(), expOpts...)
	if err != nil {
		return nil, err
	}

	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = "chromestream"
	}
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
	)
	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)),
		sdklog.WithResource(res),
	)

	return &Mirror{
		provider: provider,
		logger:   provider.Logger("chromestream"),
		timeout:  opts.Timeout,
	}, nil
}

func resolveMirrorEndpoint(opts *MirrorOptions) string {
	if endpoint := strings.TrimSpace(opts.Endpoint); endpoint != "" {
		return endpoint
	}
	if !opts.FromEnv {
		return ""
	}
	if endpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT")); endpoint != "" {
		return endpoint
	}
	return strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
}

// Emit mirrors one record. Nil-safe.
func (m *Mirror) Emit(ev event.Event) {
	if m == nil || m.logger == nil {
		return
	}

	var record otelLog.Record
	now := time.Now()
	record.SetTimestamp(now)
	record.SetObservedTimestamp(now)
	record.SetEventName("chromestream.event")
	record.AddAttributes(
		otelLog.String("trace.name", ev.Name),
		otelLog.String("trace.cat", ev.Cat),
		otelLog.String("trace.ph", ev.Ph.Code()),
		otelLog.Float64("trace.ts", ev.Ts),
		otelLog.Int64("trace.pid", int64(ev.Pid)),
		otelLog.Int64("trace.tid", int64(ev.Tid)),
	)
	if ev.ID != "" {
		record.AddAttributes(otelLog.String("trace.id", ev.ID))
	}
	if ev.Dur != nil {
		record.AddAttributes(otelLog.Float64("trace.dur", *ev.Dur))
	}
	if len(ev.Args) > 0 {
		kvs := make([]otelLog.KeyValue, 0, len(ev.Args))
		for k, v := range ev.Args {
			kvs = append(kvs, otelLog.String(k, v))
		}
		record.SetBody(otelLog.MapValue(kvs...))
	}

	m.logger.Emit(context.Background(), record)
}

// Shutdown flushes the exporter. Nil-safe.
func (m *Mirror) Shutdown() {
	if m == nil || m.provider == nil {
		return
	}
	timeout := m.timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := m.provider.Shutdown(ctx); err != nil {
		logger.Debugf("OTLP mirror shutdown failed: %v", err)
	}
}
