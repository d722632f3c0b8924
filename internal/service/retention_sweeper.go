package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/globetrotter/globetrotter-api/internal/observability"
	"github.com/globetrotter/globetrotter-api/internal/repository"
)

type SweepResult struct {
	Sessions      int64
	ResetTokens   int64
	RevokedTokens int64
}

// RetentionSweeper deletes rows past their expiry. Lookups already ignore
// such rows, so a delayed or failed sweep only costs storage.
type RetentionSweeper struct {
	sessionRepo repository.SessionRepository
	resetRepo   repository.PasswordResetRepository
	revokedRepo repository.RevokedTokenRepository
	interval    time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

func NewRetentionSweeper(
	sessionRepo repository.SessionRepository,
	resetRepo repository.PasswordResetRepository,
	revokedRepo repository.RevokedTokenRepository,
	interval time.Duration,
	logger *slog.Logger,
) *RetentionSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionSweeper{
		sessionRepo: sessionRepo,
		resetRepo:   resetRepo,
		revokedRepo: revokedRepo,
		interval:    interval,
		now:         time.Now,
		logger:      logger,
	}
}

func (s *RetentionSweeper) WithClock(now func() time.Time) *RetentionSweeper {
	if now != nil {
		s.now = now
	}
	return s
}

// RunOnce sweeps every table even when an earlier one fails; the returned
// error joins the individual failures.
func (s *RetentionSweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	now := s.now().UTC()
	var (
		result SweepResult
		errs   []error
	)
	sweep := func(table string, cleanup func(context.Context, time.Time) (int64, error), dst *int64) {
		n, err := cleanup(ctx, now)
		if err != nil {
			observability.RecordRetentionSweep(ctx, table, "error", 0)
			errs = append(errs, fmt.Errorf("sweep %s: %w", table, err))
			return
		}
		*dst = n
		observability.RecordRetentionSweep(ctx, table, "success", n)
	}
	sweep("sessions", s.sessionRepo.CleanupExpired, &result.Sessions)
	sweep("password_resets", s.resetRepo.CleanupExpired, &result.ResetTokens)
	sweep("revoked_access_tokens", s.revokedRepo.CleanupExpired, &result.RevokedTokens)
	return result, errors.Join(errs...)
}

// Start sweeps once immediately and then every interval until ctx is done or
// the returned stop function is called. stop waits for an in-flight sweep.
func (s *RetentionSweeper) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			s.runAndLog(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}
}

func (s *RetentionSweeper) runAndLog(ctx context.Context) {
	result, err := s.RunOnce(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.ErrorContext(ctx, "retention sweep failed", "error", err,
			"sessions_deleted", result.Sessions,
			"reset_tokens_deleted", result.ResetTokens,
			"revoked_tokens_deleted", result.RevokedTokens)
		return
	}
	s.logger.InfoContext(ctx, "retention sweep completed",
		"sessions_deleted", result.Sessions,
		"reset_tokens_deleted", result.ResetTokens,
		"revoked_tokens_deleted", result.RevokedTokens)
}
