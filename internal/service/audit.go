// Copyright (c) 2026 CREAS Digital
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service provides business logic: audit logging and dashboard
// aggregation.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mileusna/useragent"

	"github.com/creasdigital/paefi-go/internal/middleware"
	"github.com/creasdigital/paefi-go/internal/model"
	"github.com/creasdigital/paefi-go/internal/store"
)

// AuditService appends entries to the audit event log. Every write is
// best-effort: failures never propagate to the caller and never roll back
// the operation being audited. The failure itself goes to the operational
// log, which is a separate channel from the audit trail.
type AuditService struct {
	queries *store.Queries
}

// NewAuditService creates an AuditService.
func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{queries: store.New(db)}
}

// Record appends one audit entry for an HTTP request. The action label
// names the operation (e.g. "caso.create"); metadata carries the free-form
// detail. Client IP, user-agent summary and the request correlation ID are
// attached automatically.
func (s *AuditService) Record(r *http.Request, category, action string, metadata map[string]any) {
	meta := make(map[string]any, len(metadata)+3)
	for k, v := range metadata {
		meta[k] = v
	}

	if id := middleware.GetRequestID(r.Context()); id != "" {
		meta["requestId"] = id
	}
	if uaString := r.UserAgent(); uaString != "" {
		ua := useragent.Parse(uaString)
		meta["browser"] = ua.Name
		meta["os"] = ua.OS
	}

	var userID sql.NullInt64
	if ptr := middleware.GetUserIDPtr(r); ptr != nil {
		userID = sql.NullInt64{Int64: *ptr, Valid: true}
	}

	s.write(r.Context(), category, action, userID, middleware.GetClientIP(r), meta)
}

// RecordSystem appends an audit entry outside any HTTP request.
func (s *AuditService) RecordSystem(ctx context.Context, action string, metadata map[string]any) {
	s.write(ctx, model.EventCategorySystem, action, sql.NullInt64{}, "", metadata)
}

func (s *AuditService) write(ctx context.Context, category, action string, userID sql.NullInt64, ip string, metadata map[string]any) {
	metadataJSON := "{}"
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			metadataJSON = string(b)
		}
	}

	// Background context: the entry should land even if the request
	// context was cancelled after the primary operation committed.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	_, err := s.queries.CreateEvent(writeCtx, store.CreateEventParams{
		Level:     model.EventLevelInfo,
		Category:  category,
		Message:   action,
		UserID:    userID,
		Metadata:  metadataJSON,
		IPAddress: ip,
		CreatedAt: time.Now(),
	})
	if err != nil {
		slog.Error("audit log write failed", "action", action, "error", err)
	}
}

// PurgeOlderThan removes audit entries past the retention window.
func (s *AuditService) PurgeOlderThan(ctx context.Context, retention time.Duration) error {
	return s.queries.DeleteOldEvents(ctx, time.Now().Add(-retention))
}
