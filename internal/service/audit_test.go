// Copyright (c) 2026 CREAS Digital
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/creasdigital/paefi-go/internal/model"
	"github.com/creasdigital/paefi-go/internal/store"
	"github.com/creasdigital/paefi-go/internal/testutil"
)

func TestAuditRecord(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)
	svc := NewAuditService(db)

	req := httptest.NewRequest("POST", "/api/v1/casos", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	req.Header.Set("X-Real-IP", "10.0.0.5")

	svc.Record(req, model.EventCategoryCase, "caso.create", map[string]any{"casoId": int64(7)})

	events, err := store.New(db).ListEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len = %d, want 1", len(events))
	}

	e := events[0]
	if e.Category != model.EventCategoryCase || e.Message != "caso.create" {
		t.Errorf("event = %+v", e)
	}
	if e.IPAddress != "10.0.0.5" {
		t.Errorf("IPAddress = %q", e.IPAddress)
	}
	if !strings.Contains(e.Metadata, `"casoId":7`) {
		t.Errorf("metadata missing casoId: %s", e.Metadata)
	}
	if !strings.Contains(e.Metadata, `"browser":"Chrome"`) {
		t.Errorf("metadata missing browser: %s", e.Metadata)
	}
}

func TestAuditRecord_SurvivesCancelledContext(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)
	svc := NewAuditService(db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest("POST", "/api/v1/casos", nil).WithContext(ctx)

	svc.Record(req, model.EventCategoryCase, "caso.delete", nil)

	events, err := store.New(db).ListEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("len = %d, want entry written despite cancelled request context", len(events))
	}
}

func TestAuditRecord_WriteFailureSwallowed(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	svc := NewAuditService(db)
	cleanup() // closed database makes every write fail

	req := httptest.NewRequest("POST", "/api/v1/casos", nil)

	// Must not panic and must not surface the failure
	svc.Record(req, model.EventCategoryCase, "caso.update", nil)
	svc.RecordSystem(context.Background(), "system.start", nil)
}

func TestPurgeOlderThan(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)
	q := store.New(db)
	svc := NewAuditService(db)

	if _, err := q.CreateEvent(context.Background(), store.CreateEventParams{
		Level: model.EventLevelInfo, Category: model.EventCategorySystem,
		Message: "ancient", Metadata: "{}", CreatedAt: time.Now().Add(-1000 * time.Hour),
	}); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	svc.RecordSystem(context.Background(), "system.start", nil)

	if err := svc.PurgeOlderThan(context.Background(), 24*time.Hour); err != nil {
		t.Fatalf("PurgeOlderThan: %v", err)
	}

	events, err := q.ListEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 || events[0].Message != "system.start" {
		t.Errorf("events after purge = %+v", events)
	}
}
