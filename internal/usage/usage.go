// Package usage records per-tenant activity for billing and the
// superadmin overview. Logging is best effort and never blocks or fails
// the operation being logged.
package usage

import "context"

// Entry is one recorded action.
type Entry struct {
	OrgID    string
	UserID   string
	Action   string
	Bytes    int64
	Metadata map[string]any
}

// Action names recorded in the usage log.
const (
	ActionScan      = "scan"
	ActionEmbed     = "embed"
	ActionSearch    = "search"
	ActionMatch     = "match"
	ActionFaceLogin = "face_login"
	ActionBundle    = "bundle_create"
)

// Logger records usage entries.
type Logger interface {
	Log(ctx context.Context, e Entry)
}

// NopLogger discards all entries.
type NopLogger struct{}

// Log implements Logger.
func (NopLogger) Log(context.Context, Entry) {}
