package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/metric"
)

var (
	initMetricsOnce    sync.Once
	turnsCounter       metric.Int64Counter
	turnDuration       metric.Float64Histogram
	genFailuresCounter metric.Int64Counter
	qualifiedCounter   metric.Int64Counter
	sweptCounter       metric.Int64Counter
	sessionsGauge      metric.Int64ObservableGauge
	sseEventsCounter   metric.Int64Counter
)

// InitMetrics creates the meter instruments. sessionCount feeds the active
// sessions gauge (may be nil). Safe to call multiple times; only runs once.
// Call after InitMeterProvider.
func InitMetrics(ctx context.Context, sessionCount func() int64) error {
	var err error
	initMetricsOnce.Do(func() {
		m := Meter()
		turnsCounter, err = m.Int64Counter("leadline_turns_total", metric.WithDescription("Total conversation turns processed"))
		if err != nil {
			return
		}
		turnDuration, err = m.Float64Histogram("leadline_turn_duration_seconds", metric.WithDescription("Turn processing duration in seconds"))
		if err != nil {
			return
		}
		genFailuresCounter, err = m.Int64Counter("leadline_generation_failures_total", metric.WithDescription("Generation calls that failed and fell back to a static response"))
		if err != nil {
			return
		}
		qualifiedCounter, err = m.Int64Counter("leadline_qualified_leads_total", metric.WithDescription("Sessions that crossed the qualification threshold"))
		if err != nil {
			return
		}
		sweptCounter, err = m.Int64Counter("leadline_sessions_swept_total", metric.WithDescription("Sessions removed by TTL sweep"))
		if err != nil {
			return
		}
		sseEventsCounter, err = m.Int64Counter("leadline_sse_events_total", metric.WithDescription("Total SSE events published"))
		if err != nil {
			return
		}
		sessionsGauge, err = m.Int64ObservableGauge("leadline_active_sessions", metric.WithDescription("Current unexpired session count"))
		if err != nil {
			return
		}
		if sessionCount != nil {
			_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
				o.ObserveInt64(sessionsGauge, sessionCount())
				return nil
			}, sessionsGauge)
			if err != nil {
				return
			}
		}
	})
	return err
}

// RecordTurn records one processed turn and its duration.
func RecordTurn(ctx context.Context, conversationType string, forced bool, seconds float64) {
	if turnsCounter == nil {
		return
	}
	attrs := metric.WithAttributes(
		AttrConversationType.String(conversationType),
		AttrForced.Bool(forced),
	)
	turnsCounter.Add(ctx, 1, attrs)
	if turnDuration != nil {
		turnDuration.Record(ctx, seconds, attrs)
	}
}

// RecordGenerationFailure records a failed generation call.
func RecordGenerationFailure(ctx context.Context) {
	if genFailuresCounter == nil {
		return
	}
	genFailuresCounter.Add(ctx, 1)
}

// RecordQualified records a session crossing the qualification threshold.
func RecordQualified(ctx context.Context, tier string) {
	if qualifiedCounter == nil {
		return
	}
	qualifiedCounter.Add(ctx, 1, metric.WithAttributes(AttrTier.String(tier)))
}

// RecordSwept records sessions removed by the TTL sweeper.
func RecordSwept(ctx context.Context, n int) {
	if sweptCounter == nil || n <= 0 {
		return
	}
	sweptCounter.Add(ctx, int64(n))
}

// RecordSSEEvent records one published SSE event.
func RecordSSEEvent(ctx context.Context) {
	if sseEventsCounter == nil {
		return
	}
	sseEventsCounter.Add(ctx, 1)
}
