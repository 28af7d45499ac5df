package ports

import "context"

// Notification levels.
const (
	LevelInfo     = "INFO"
	LevelWarning  = "WARNING"
	LevelError    = "ERROR"
	LevelCritical = "CRITICAL"
)

// Notifier delivers operational alerts. Implementations must be
// fire-and-forget: a delivery failure is logged, never returned to the
// trading path.
type Notifier interface {
	Send(ctx context.Context, message, level string, data map[string]any)
}
