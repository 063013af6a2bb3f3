package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/identity"
	"github.com/InsiderPhD/crAPIbara-Adoption-Agency-sub001/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// Sink records security-relevant events. Implementations must be best-effort:
// a failing sink never fails the operation that produced the event.
type Sink interface {
	Record(ctx context.Context, event string, fields map[string]any) error
}

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// requestIDFromContext extracts the audit request id from context if present.
func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogSink writes audit entries as JSON lines through the shared obs logger.
type LogSink struct{}

// NewLogSink returns the default JSON-line sink.
func NewLogSink() *LogSink { return &LogSink{} }

// Record writes one audit entry enriched with request and caller context.
func (s *LogSink) Record(ctx context.Context, event string, fields map[string]any) error {
	return LogEvent(ctx, event, fields)
}

var _ Sink = (*LogSink)(nil)

// LogEvent writes an audit log entry enriched with request and caller context.
// Credentials and other secret material must never be passed in fields.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"type":  "audit",
		"event": event,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if ident, ok := identity.FromContext(ctx); ok {
		entry["subject_id"] = ident.SubjectID
		entry["role"] = string(ident.Role)
		if ident.OrgID != "" {
			entry["org_id"] = ident.OrgID
		}
	}
	if len(fields) > 0 {
		copyFields := make(map[string]any, len(fields))
		for k, v := range fields {
			copyFields[k] = v
		}
		entry["fields"] = copyFields
	} else {
		entry["fields"] = map[string]any{}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
