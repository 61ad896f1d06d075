// Copyright (c) 2026 CREAS Digital
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/creasdigital/paefi-go/internal/service"
)

// Scheduler handles scheduled maintenance like audit log retention.
type Scheduler struct {
	cron      *cron.Cron
	audit     *service.AuditService
	retention time.Duration
	logger    *slog.Logger
}

// New creates a new scheduler instance.
func New(audit *service.AuditService, retention time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		audit:     audit,
		retention: retention,
		logger:    logger,
	}
}

// Start registers the nightly audit purge job at 03:30 and begins the cron
// loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc("30 3 * * *", func() {
		if err := s.purgeAuditLog(); err != nil {
			s.logger.Error("audit log purge failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) purgeAuditLog() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := s.audit.PurgeOlderThan(ctx, s.retention); err != nil {
		return err
	}

	s.logger.Info("audit log purged", "retention", s.retention)
	return nil
}
