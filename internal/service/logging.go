package service

import "context"

type contextKey string

// VerboseContextKey marks a context whose operations may log sensitive
// details (full phone numbers, message bodies).
const VerboseContextKey contextKey = "verbose"

// IsVerboseLogging reports whether verbose logging was enabled for this
// context.
func IsVerboseLogging(ctx context.Context) bool {
	v, ok := ctx.Value(VerboseContextKey).(bool)
	return ok && v
}

// Common structured log field names.
const (
	LogFieldClinicID  = "clinic_id"
	LogFieldMessageID = "message_id"
	LogFieldReceiptID = "receipt_id"
	LogFieldPhone     = "phone"
	LogFieldRequestID = "request_id"
	LogFieldTraceID   = "trace_id"
)
