package posting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/harryospicon/catarse/internal/balance"
	"github.com/harryospicon/catarse/internal/logging"
	"github.com/harryospicon/catarse/internal/metrics"
)

// SweepExpirations reverses every refund credit past the expiry window whose
// owner's balance is still untouched. Candidates that fail are logged and
// skipped so one bad row cannot stall the rest of the sweep.
func (s *Service) SweepExpirations(ctx context.Context) ([]balance.Transaction, error) {
	metrics.SweepRuns.Inc()

	cutoff := time.Now().UTC().Add(-ExpirationWindow)
	candidates, err := s.store.ListExpirableRefunds(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expirable refunds: %w", err)
	}

	var posted []balance.Transaction
	for _, original := range candidates {
		tx, err := s.PostExpiration(ctx, original.ID)
		if err != nil {
			metrics.SweepFailures.Inc()
			s.logger.Error("expire refund credit",
				slog.String("transaction_id", original.ID.String()),
				slog.Any("error", err))
			continue
		}
		if tx != nil {
			metrics.SweepExpired.Inc()
			posted = append(posted, *tx)
		}
	}
	return posted, nil
}

// Sweeper runs the expiration sweep on a fixed interval.
type Sweeper struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper constructs a sweeper. A non-positive interval disables it.
func NewSweeper(service *Service, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Sweeper{service: service, interval: interval, logger: logger}
}

// Run blocks, sweeping on every tick, until the context is canceled.
func (w *Sweeper) Run(ctx context.Context) {
	if w.interval <= 0 {
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("expiration sweeper started", slog.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiration sweeper stopped")
			return
		case <-ticker.C:
			expired, err := w.service.SweepExpirations(ctx)
			if err != nil {
				w.logger.Error("expiration sweep failed", slog.Any("error", err))
				continue
			}
			if len(expired) > 0 {
				w.logger.Info("expiration sweep completed", slog.Int("expired", len(expired)))
			}
		}
	}
}
