package audit

import (
	"context"
	"errors"
)

// Fanout appends to several stores. Every sink sees every event; errors are
// joined so one failing sink does not hide another.
type Fanout struct {
	sinks []Store
}

func NewFanout(sinks ...Store) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Append(ctx context.Context, event Event) error {
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Append(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ListByCorrelation reads from the first sink that supports reads.
func (f *Fanout) ListByCorrelation(ctx context.Context, correlationID string) ([]Event, error) {
	var lastErr error
	for _, sink := range f.sinks {
		events, err := sink.ListByCorrelation(ctx, correlationID)
		if err == nil {
			return events, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
