package observability

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/Leganyst/clinic-scheduling"

// Metrics: счётчики ядра расписания.
type Metrics struct {
	AppointmentsBooked    metric.Int64Counter
	AppointmentsCancelled metric.Int64Counter
	SlotConflicts         metric.Int64Counter
	PhaseTransitions      metric.Int64Counter
	CacheHits             metric.Int64Counter
	CacheMisses           metric.Int64Counter
	RequestCount          metric.Int64Counter
	RequestDuration       metric.Float64Histogram
}

// Setup поднимает OTLP-экспорт трейсов и метрик. При пустом endpoint ничего не экспортируем,
// глобальные провайдеры остаются no-op.
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tracerProvider.Shutdown(ctx),
			meterProvider.Shutdown(ctx),
		)
	}
	return shutdown, nil
}

// InitMetrics регистрирует счётчики в текущем глобальном MeterProvider.
func InitMetrics() (*Metrics, error) {
	return newMetrics(otel.Meter(instrumentationName))
}

// NoopMetrics: счётчики без экспорта, для тестов и конструкторов по умолчанию.
func NoopMetrics() *Metrics {
	m, _ := newMetrics(noop.NewMeterProvider().Meter(instrumentationName))
	return m
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.AppointmentsBooked, "scheduling.appointments.booked", "Appointments created, including series members"},
		{&m.AppointmentsCancelled, "scheduling.appointments.cancelled", "Appointments cancelled"},
		{&m.SlotConflicts, "scheduling.slot.conflicts", "Booking attempts rejected as slot unavailable"},
		{&m.PhaseTransitions, "scheduling.phase.transitions", "Meeting phase transitions"},
		{&m.CacheHits, "scheduling.slot_cache.hits", "Availability cache hits"},
		{&m.CacheMisses, "scheduling.slot_cache.misses", "Availability cache misses"},
		{&m.RequestCount, "http.server.request.count", "Number of HTTP requests"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
	}

	m.RequestDuration, err = meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// StartSpan открывает span под общим именем инструментирования.
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// EndSpan закрывает span, помечая его ошибкой при err != nil.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
