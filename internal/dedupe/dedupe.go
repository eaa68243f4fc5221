// Package dedupe records processed event ids so redelivered messages can be
// acknowledged without re-running their side effects. Markers expire after a
// TTL; the handlers behind them stay idempotent, so an expired marker only
// costs a harmless re-run.
package dedupe

import "context"

// Store marks event ids as seen.
type Store interface {
	// MarkIfFirst records the event id and reports true when this is the
	// first sighting. A later call with the same id returns false until the
	// marker expires.
	MarkIfFirst(ctx context.Context, eventID string) (bool, error)

	// Unmark releases a marker so a retried delivery is processed again.
	// Callers invoke it when handling fails after the marker was taken.
	Unmark(ctx context.Context, eventID string) error
}
