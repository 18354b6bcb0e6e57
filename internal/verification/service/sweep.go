package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"verihire/internal/verification/models"
	audit "verihire/pkg/platform/audit"
	txcontext "verihire/pkg/platform/tx"
	"verihire/pkg/requestcontext"
)

const sweepTimeout = 2 * time.Minute

// Sweep marks sent requests whose validity window elapsed. Stored status
// stays sent; each request is announced once through an expiry audit event.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	swept := 0
	for {
		batch, err := s.store.ListExpiredUnnotified(ctx, now, sweepBatchSize)
		if err != nil {
			return swept, err
		}
		progressed := 0
		for _, r := range batch {
			marked, err := s.markExpired(ctx, r, now)
			if err != nil {
				s.logger.WarnContext(ctx, "failed to mark request expired",
					"verification_id", r.ID.String(),
					"error", err,
				)
				continue
			}
			if marked {
				progressed++
			}
		}
		swept += progressed
		if len(batch) < sweepBatchSize || progressed == 0 {
			break
		}
	}

	s.metrics.AddExpiredSwept(swept)
	if swept > 0 {
		s.logger.InfoContext(ctx, "expired verification requests swept", "count", swept)
	}
	return swept, nil
}

func (s *Service) markExpired(ctx context.Context, r models.VerificationRequest, now time.Time) (bool, error) {
	marked := false
	err := s.tx.RunInTx(txcontext.WithShardKey(ctx, r.CandidateID.String()), func(ctx context.Context, store Store) error {
		current, err := store.FindRequest(ctx, r.ID)
		if err != nil {
			return err
		}
		if current.Status != models.StatusSent || !current.IsExpired(now) || current.ExpiryNotifiedAt != nil {
			return nil
		}
		if err := store.MarkExpiryNotified(ctx, current.ID, now); err != nil {
			return err
		}
		marked = true
		return s.emit(ctx, audit.Event{
			CandidateID:    current.CandidateID.String(),
			VerificationID: current.ID.String(),
			Action:         string(audit.EventVerificationExpired),
			Subject:        current.EmployerEmail,
		})
	})
	return marked, err
}

// ScheduleSweep registers Sweep on c under the given cron spec.
func (s *Service) ScheduleSweep(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.ErrorContext(ctx, "expiry sweep failed", "error", err)
		}
	})
}
