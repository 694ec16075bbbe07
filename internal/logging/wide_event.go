package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/safebite/server/internal/logger"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey string

const (
	contextKeyWideEvent contextKey = "wide_event"
	contextKeyTraceID   contextKey = "trace_id"
)

// WideEvent is one structured log entry capturing the full lifecycle of a
// request. It is incrementally populated as the request flows through the
// gate: auth, trial, quota, paywall decision.
type WideEvent struct {
	TraceID   string    `json:"trace_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`

	HTTPMethod     string `json:"http_method,omitempty"`
	HTTPPath       string `json:"http_path,omitempty"`
	HTTPStatusCode int    `json:"http_status_code,omitempty"`
	HTTPDurationMs int64  `json:"http_duration_ms,omitempty"`

	UserID string `json:"user_id,omitempty"`

	FeatureID       string `json:"feature_id,omitempty"`
	QuotaRemaining  *int64 `json:"quota_remaining,omitempty"`
	TrialStatus     string `json:"trial_status,omitempty"`
	PaywallTrigger  string `json:"paywall_trigger,omitempty"`
	PaywallSeverity string `json:"paywall_severity,omitempty"`
	Allowed         *bool  `json:"allowed,omitempty"`

	Error          string `json:"error,omitempty"`
	PanicRecovered bool   `json:"panic_recovered,omitempty"`
}

// NewWideEvent creates a new WideEvent with a trace ID and timestamp
func NewWideEvent(eventType string) *WideEvent {
	return &WideEvent{
		TraceID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// WithContext attaches a WideEvent to a context
func WithContext(ctx context.Context, event *WideEvent) context.Context {
	ctx = context.WithValue(ctx, contextKeyWideEvent, event)
	ctx = context.WithValue(ctx, contextKeyTraceID, event.TraceID)
	return ctx
}

// FromContext retrieves the WideEvent from a context
func FromContext(ctx context.Context) *WideEvent {
	if event, ok := ctx.Value(contextKeyWideEvent).(*WideEvent); ok {
		return event
	}
	return nil
}

// TraceIDFromContext returns the request trace ID, if any.
func TraceIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyTraceID).(string); ok {
		return id
	}
	return ""
}

func EnrichHTTP(ctx context.Context, method, path string) {
	if event := FromContext(ctx); event != nil {
		event.HTTPMethod = method
		event.HTTPPath = path
	}
}

func EnrichHTTPStatus(ctx context.Context, statusCode int) {
	if event := FromContext(ctx); event != nil {
		event.HTTPStatusCode = statusCode
	}
}

func EnrichHTTPDuration(ctx context.Context, duration time.Duration) {
	if event := FromContext(ctx); event != nil {
		event.HTTPDurationMs = duration.Milliseconds()
	}
}

func EnrichUser(ctx context.Context, userID string) {
	if event := FromContext(ctx); event != nil {
		event.UserID = userID
	}
}

func EnrichFeature(ctx context.Context, featureID string) {
	if event := FromContext(ctx); event != nil {
		event.FeatureID = featureID
	}
}

func EnrichDecision(ctx context.Context, allowed bool, trigger, severity string, remaining *int64) {
	if event := FromContext(ctx); event != nil {
		event.Allowed = &allowed
		event.PaywallTrigger = trigger
		event.PaywallSeverity = severity
		event.QuotaRemaining = remaining
	}
}

func EnrichTrial(ctx context.Context, status string) {
	if event := FromContext(ctx); event != nil {
		event.TrialStatus = status
	}
}

func EnrichError(ctx context.Context, err error) {
	if event := FromContext(ctx); event != nil && err != nil {
		event.Error = err.Error()
	}
}

func EnrichPanic(ctx context.Context) {
	if event := FromContext(ctx); event != nil {
		event.PanicRecovered = true
	}
}

// Emit writes the event through the process logger. Called once per
// request, after the handler returns.
func (e *WideEvent) Emit() {
	level := slog.LevelInfo
	if e.Error != "" || e.PanicRecovered {
		level = slog.LevelError
	}
	logger.Log.LogAttrs(context.Background(), level, e.EventType,
		slog.String("trace_id", e.TraceID),
		slog.Any("event", e),
	)
}
