package wallet

import (
	// Go Internal Packages
	"context"
	"time"

	// Local Packages
	models "wallet-ledger/models"

	// External Packages
	"go.uber.org/zap"
)

// SweepExpired fails every pending payment whose session deadline has passed and
// releases its reservation. It returns the number of sessions expired.
func (s *Service) SweepExpired(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	expired := 0
	for {
		batch, err := s.Store.ListExpiredPayments(ctx, s.now(), batchSize)
		if err != nil {
			return expired, err
		}
		for _, t := range batch {
			ok, err := s.ExpirePayment(ctx, t, models.ReasonExpired)
			if err != nil {
				return expired, err
			}
			if ok {
				expired++
			}
		}
		if len(batch) < batchSize {
			return expired, nil
		}
	}
}

// StartExpirySweeper runs SweepExpired every interval until ctx is done.
func (s *Service) StartExpirySweeper(ctx context.Context, interval time.Duration, batchSize int) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		s.Logger.Info("expiry sweeper started", zap.Duration("interval", interval))
		for {
			select {
			case <-ctx.Done():
				s.Logger.Info("expiry sweeper stopped")
				return
			case <-ticker.C:
				n, err := s.SweepExpired(ctx, batchSize)
				if err != nil {
					s.Metrics.SweepRun("error")
					s.Logger.Error("expiry sweep failed", zap.Int("expired", n), zap.Error(err))
					continue
				}
				s.Metrics.SweepRun("ok")
				if n > 0 {
					s.Logger.Info("expiry sweep released reservations", zap.Int("expired", n))
				}
			}
		}
	}()
}
