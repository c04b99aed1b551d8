package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	boardSpanName    = "board.fetch"
	boardEventName   = "board.fetch.completed"
	boardEventDomain = "meticulous"
	boardRoute       = "/api/board"

	tracerName = "meticulous-api/api"
)

// boardRequestMetrics collects per-request timings for the board read
// path and emits them once, as both an OTel span and a structured
// observability.event log record sharing the span's trace id.
type boardRequestMetrics struct {
	logger *log.Logger
	span   trace.Span

	start          time.Time
	readDuration   time.Duration
	encodeDuration time.Duration
	cardsReturned  int
	cacheServed    bool
	errorStage     string
}

func newBoardRequestMetrics(ctx context.Context, logger *log.Logger) (*boardRequestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, boardSpanName)
	return &boardRequestMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
	}, spanCtx
}

func (m *boardRequestMetrics) ObserveRead(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.readDuration = duration
}

func (m *boardRequestMetrics) ObserveEncode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.encodeDuration = duration
}

func (m *boardRequestMetrics) SetCardsReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.cardsReturned = count
}

func (m *boardRequestMetrics) SetCacheServed(served bool) {
	m.cacheServed = served
}

func (m *boardRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log finalizes the request: sets span attributes and status, records
// the observability event on the span, ends it, and writes the
// matching logrus entry.
func (m *boardRequestMetrics) Log(status int, err error) {
	if m == nil || m.logger == nil {
		return
	}

	totalMs := durationToMillis(time.Since(m.start))
	attrs := []attribute.KeyValue{
		attribute.String("http.route", boardRoute),
		attribute.Float64("meticulous.board.total_ms", totalMs),
		attribute.Int("meticulous.board.cards_returned", m.cardsReturned),
		attribute.Bool("meticulous.board.cache_served", m.cacheServed),
	}
	if m.readDuration > 0 {
		attrs = append(attrs, attribute.Float64("meticulous.board.read_ms", durationToMillis(m.readDuration)))
	}
	if m.encodeDuration > 0 {
		attrs = append(attrs, attribute.Float64("meticulous.board.encode_ms", durationToMillis(m.encodeDuration)))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("meticulous.board.error_stage", m.errorStage))
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}

	severityText, severityNumber := severityForStatus(status, err)

	if m.span != nil {
		m.span.SetAttributes(append(attrs, attribute.Int("http.status_code", status))...)
		eventAttrs := append(attrs,
			attribute.String("event.name", boardEventName),
			attribute.String("event.domain", boardEventDomain),
			attribute.String("severity_text", severityText),
		)
		m.span.AddEvent("observability.event", trace.WithAttributes(eventAttrs...))
		if err != nil {
			m.span.SetStatus(codes.Error, err.Error())
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	attrMap := make(map[string]any, len(attrs)+2)
	for _, kv := range attrs {
		attrMap[string(kv.Key)] = kv.Value.AsInterface()
	}
	attrMap["http.status_code"] = status

	fields := log.Fields{
		"event.name":      boardEventName,
		"event.domain":    boardEventDomain,
		"attributes":      attrMap,
		"severity_text":   severityText,
		"severity_number": severityNumber,
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
	}

	entry := m.logger.WithFields(fields)
	switch severityText {
	case "ERROR":
		entry.Error("observability.event")
	case "WARN":
		entry.Warn("observability.event")
	default:
		entry.Info("observability.event")
	}
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= 500:
		return "ERROR", 17
	case status >= 400:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
