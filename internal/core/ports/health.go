package ports

import "context"

// HealthChecker is a readiness check for one backing dependency. The /health
// endpoint runs every registered checker with a short deadline and reports
// the service as degraded when any of them fails.
type HealthChecker interface {
	// Ping returns nil when the dependency can serve settlement traffic,
	// which may be stricter than plain connectivity.
	Ping(ctx context.Context) error
	// Name is the key used in the health report.
	Name() string
}
