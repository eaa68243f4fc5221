package registration

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mentora/internal/audit"
	"mentora/internal/identity"
	dErrors "mentora/pkg/domain-errors"
)

// PendingLedger tracks identities created by this replica whose completion
// event has not arrived yet. It lives in memory: after a restart the ledger
// starts empty and previously pending identities are simply not swept, which
// is acceptable for a best-effort cleanup.
type PendingLedger struct {
	mu      sync.Mutex
	entries map[uuid.UUID]time.Time
}

func NewPendingLedger() *PendingLedger {
	return &PendingLedger{entries: make(map[uuid.UUID]time.Time)}
}

func (l *PendingLedger) Add(userID uuid.UUID, createdAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[userID] = createdAt
}

func (l *PendingLedger) Remove(userID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, userID)
}

// olderThan returns the ids of entries created before the cutoff.
func (l *PendingLedger) olderThan(cutoff time.Time) []uuid.UUID {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []uuid.UUID
	for id, createdAt := range l.entries {
		if createdAt.Before(cutoff) {
			out = append(out, id)
		}
	}
	return out
}

// Sweeper reaps identities that stayed disabled past the status-token TTL.
// Once the token has expired the client can no longer poll for the outcome,
// so a still-disabled identity is a stranded saga and gets compensated.
type Sweeper struct {
	ledger     *PendingLedger
	identities identity.Provider
	audits     *audit.Publisher
	interval   time.Duration
	maxAge     time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

func NewSweeper(ledger *PendingLedger, identities identity.Provider, audits *audit.Publisher, interval, maxAge time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		ledger:     ledger,
		identities: identities,
		audits:     audits,
		interval:   interval,
		maxAge:     maxAge,
		logger:     logger.With("component", "sweeper"),
		now:        time.Now,
	}
}

func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	stale := s.ledger.olderThan(s.now().Add(-s.maxAge))
	for _, userID := range stale {
		s.reap(ctx, userID)
	}
}

// reap compensates a single stranded identity. Enabled or already-absent
// identities just leave the ledger: the saga finished through another path.
func (s *Sweeper) reap(ctx context.Context, userID uuid.UUID) {
	state, err := s.identities.Enablement(ctx, userID)
	if err != nil {
		s.logger.Error("sweep state check failed", "user_id", userID, "error", err)
		return
	}

	if state != identity.EnablementDisabled {
		s.ledger.Remove(userID)
		return
	}

	if err := s.identities.Delete(ctx, userID); err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
		s.logger.Error("sweep delete failed", "user_id", userID, "error", err)
		return
	}
	s.ledger.Remove(userID)
	sweeperDeletions.Inc()
	s.audits.Emit(audit.Event{
		UserID: userID.String(),
		Action: audit.ActionSweepDeletedIdentity,
	})
	s.logger.Info("stranded registration reaped", "user_id", userID)
}
