package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/mayank-tagline555/sooq-billing/internal/config"
	"github.com/mayank-tagline555/sooq-billing/internal/org"
	"github.com/mayank-tagline555/sooq-billing/internal/services"
)

// Scheduler drives the three recurring passes: the daily fee pass, the
// annual pro-rata pass on January 1st, and the reconciliation poll every
// five minutes. Each run covers every registered organization.
type Scheduler struct {
	cron      *cron.Cron
	registry  *org.Registry
	billing   *services.BillingService
	prorata   *services.ProRataService
	reconcile *services.ReconcileService
	logger    *slog.Logger
}

func New(cfg *config.Config, registry *org.Registry, billing *services.BillingService, prorata *services.ProRataService, reconcile *services.ReconcileService, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(),
		registry:  registry,
		billing:   billing,
		prorata:   prorata,
		reconcile: reconcile,
		logger:    logger,
	}

	if _, err := s.cron.AddFunc(cfg.FeePassCron, s.runFeePass); err != nil {
		return nil, fmt.Errorf("schedule fee pass: %w", err)
	}
	if _, err := s.cron.AddFunc(cfg.ProRataCron, s.runProRataPass); err != nil {
		return nil, fmt.Errorf("schedule pro-rata pass: %w", err)
	}
	if _, err := s.cron.AddFunc(cfg.ReconcileCron, s.runReconcilePoll); err != nil {
		return nil, fmt.Errorf("schedule reconciliation poll: %w", err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runFeePass() {
	for _, cfg := range s.registry.All() {
		if _, err := s.billing.RunFeePass(context.Background(), cfg.OrgID, false); err != nil {
			s.logger.Error("scheduled fee pass failed", "org_id", cfg.OrgID, "error", err)
		}
	}
}

func (s *Scheduler) runProRataPass() {
	for _, cfg := range s.registry.All() {
		if _, err := s.prorata.RunAnnualPass(context.Background(), cfg.OrgID, false); err != nil {
			s.logger.Error("scheduled pro-rata pass failed", "org_id", cfg.OrgID, "error", err)
		}
	}
}

func (s *Scheduler) runReconcilePoll() {
	for _, cfg := range s.registry.All() {
		if _, err := s.reconcile.Poll(context.Background(), cfg.OrgID); err != nil {
			s.logger.Error("scheduled reconciliation poll failed", "org_id", cfg.OrgID, "error", err)
		}
	}
}
