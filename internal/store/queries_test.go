// Copyright (c) 2026 CREAS Digital
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/creasdigital/paefi-go/internal/model"
)

// openTestDB creates a migrated temp database. Local to this package: the
// shared testutil helper imports store and cannot be used here.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "store-test-*.db")
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	_ = f.Close()

	db, err := NewDB(f.Name())
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func createTestUser(t *testing.T, q *Queries, username string, role model.Role) int64 {
	t.Helper()
	id, err := q.CreateUser(context.Background(), CreateUserParams{
		Username:     username,
		PasswordHash: "$argon2id$v=19$m=19456,t=2,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		Role:         role,
		Name:         "Test " + username,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return id
}

func createTestCase(t *testing.T, q *Queries, userID int64, payload model.Payload) int64 {
	t.Helper()
	dataCad, tecRef, nome := model.PromotedFields(payload)
	id, err := q.CreateCase(context.Background(), CreateCaseParams{
		DataCad: dataCad,
		TecRef:  tecRef,
		Nome:    nome,
		Payload: payload,
		UserID:  userID,
	})
	if err != nil {
		t.Fatalf("CreateCase: %v", err)
	}
	return id
}

func TestCreateAndGetCase(t *testing.T) {
	db := openTestDB(t)
	q := New(db)
	userID := createTestUser(t, q, "tecnica1", model.RoleTecnico)

	payload := model.Payload{
		"dataCad": "2026-03-10",
		"tecRef":  "Maria Souza",
		"nome":    "J. Silva",
		"bairro":  "Centro",
		"idade":   float64(25),
	}
	id := createTestCase(t, q, userID, payload)

	c, err := q.GetCase(context.Background(), id)
	if err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if c.DataCad != "2026-03-10" || c.TecRef != "Maria Souza" || c.Nome != "J. Silva" {
		t.Errorf("promoted columns = (%q, %q, %q)", c.DataCad, c.TecRef, c.Nome)
	}
	if c.Status != model.StatusAtivo {
		t.Errorf("Status = %q, want Ativo default", c.Status)
	}
	if c.UserID != userID {
		t.Errorf("UserID = %d, want %d", c.UserID, userID)
	}
	if c.Payload["bairro"] != "Centro" {
		t.Errorf("payload bairro = %v", c.Payload["bairro"])
	}
}

func TestCreateCase_OptionalName(t *testing.T) {
	db := openTestDB(t)
	q := New(db)
	userID := createTestUser(t, q, "tecnica1", model.RoleTecnico)

	id := createTestCase(t, q, userID, model.Payload{
		"dataCad": "2026-03-10",
		"tecRef":  "Maria Souza",
	})

	c, err := q.GetCase(context.Background(), id)
	if err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if c.Nome != "" {
		t.Errorf("Nome = %q, want empty", c.Nome)
	}
}

func TestUpdateCase_NotFound(t *testing.T) {
	db := openTestDB(t)
	q := New(db)

	err := q.UpdateCase(context.Background(), UpdateCaseParams{
		ID:      9999,
		DataCad: "2026-03-10",
		TecRef:  "X",
		Payload: model.Payload{},
	})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("UpdateCase on missing row = %v, want sql.ErrNoRows", err)
	}
}

func TestUpdateCaseStatus(t *testing.T) {
	db := openTestDB(t)
	q := New(db)
	userID := createTestUser(t, q, "coord", model.RoleCoordenador)
	id := createTestCase(t, q, userID, model.Payload{"dataCad": "2026-01-05", "tecRef": "Ana"})

	if err := q.UpdateCaseStatus(context.Background(), id, model.StatusDesligado); err != nil {
		t.Fatalf("UpdateCaseStatus: %v", err)
	}

	c, err := q.GetCase(context.Background(), id)
	if err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if c.Status != model.StatusDesligado {
		t.Errorf("Status = %q, want Desligado", c.Status)
	}

	if err := q.UpdateCaseStatus(context.Background(), 9999, model.StatusAtivo); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("UpdateCaseStatus on missing row = %v, want sql.ErrNoRows", err)
	}
}

func TestDeleteCase(t *testing.T) {
	db := openTestDB(t)
	q := New(db)
	userID := createTestUser(t, q, "coord", model.RoleCoordenador)
	id := createTestCase(t, q, userID, model.Payload{"dataCad": "2026-01-05", "tecRef": "Ana"})

	if err := q.DeleteCase(context.Background(), id); err != nil {
		t.Fatalf("DeleteCase: %v", err)
	}
	if _, err := q.GetCase(context.Background(), id); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetCase after delete = %v, want sql.ErrNoRows", err)
	}
	if err := q.DeleteCase(context.Background(), id); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("second DeleteCase = %v, want sql.ErrNoRows", err)
	}
}

func TestListCases_DefaultStatusAndOrder(t *testing.T) {
	db := openTestDB(t)
	q := New(db)
	userID := createTestUser(t, q, "tecnica1", model.RoleTecnico)

	older := createTestCase(t, q, userID, model.Payload{"dataCad": "2026-01-05", "tecRef": "Ana"})
	newer := createTestCase(t, q, userID, model.Payload{"dataCad": "2026-02-20", "tecRef": "Ana"})
	archived := createTestCase(t, q, userID, model.Payload{"dataCad": "2026-02-25", "tecRef": "Ana"})
	if err := q.UpdateCaseStatus(context.Background(), archived, model.StatusArquivado); err != nil {
		t.Fatalf("UpdateCaseStatus: %v", err)
	}

	summaries, err := q.ListCases(context.Background(), ListCasesParams{})
	if err != nil {
		t.Fatalf("ListCases: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("len = %d, want 2 (archived case excluded by default)", len(summaries))
	}
	if summaries[0].ID != newer || summaries[1].ID != older {
		t.Errorf("order = [%d, %d], want newest registration first", summaries[0].ID, summaries[1].ID)
	}

	all, err := q.ListCases(context.Background(), ListCasesParams{Status: "all"})
	if err != nil {
		t.Fatalf("ListCases all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len with status=all = %d, want 3", len(all))
	}
}

func TestListCases_OwnerScope(t *testing.T) {
	db := openTestDB(t)
	q := New(db)
	owner := createTestUser(t, q, "tecnica1", model.RoleTecnico)
	other := createTestUser(t, q, "tecnica2", model.RoleTecnico)

	mine := createTestCase(t, q, owner, model.Payload{"dataCad": "2026-03-01", "tecRef": "Ana"})
	createTestCase(t, q, other, model.Payload{"dataCad": "2026-03-02", "tecRef": "Bia"})

	summaries, err := q.ListCases(context.Background(), ListCasesParams{OwnerID: owner})
	if err != nil {
		t.Fatalf("ListCases: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != mine {
		t.Errorf("owner-scoped list = %+v, want only own case", summaries)
	}
}

func TestListCases_TechnicianAccentInsensitive(t *testing.T) {
	db := openTestDB(t)
	q := New(db)
	userID := createTestUser(t, q, "tecnica1", model.RoleTecnico)

	match := createTestCase(t, q, userID, model.Payload{"dataCad": "2026-03-01", "tecRef": "João Antônio"})
	createTestCase(t, q, userID, model.Payload{"dataCad": "2026-03-02", "tecRef": "Maria"})

	summaries, err := q.ListCases(context.Background(), ListCasesParams{Technician: "JOAO"})
	if err != nil {
		t.Fatalf("ListCases: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != match {
		t.Errorf("technician search = %+v, want accent-insensitive match", summaries)
	}
}

func TestListCases_AgeBracketInclusive(t *testing.T) {
	db := openTestDB(t)
	q := New(db)
	userID := createTestUser(t, q, "tecnica1", model.RoleTecnico)

	in18 := createTestCase(t, q, userID, model.Payload{"dataCad": "2026-03-01", "tecRef": "Ana", "idade": float64(18)})
	in29 := createTestCase(t, q, userID, model.Payload{"dataCad": "2026-03-02", "tecRef": "Ana", "idade": float64(29)})
	createTestCase(t, q, userID, model.Payload{"dataCad": "2026-03-03", "tecRef": "Ana", "idade": float64(30)})
	createTestCase(t, q, userID, model.Payload{"dataCad": "2026-03-04", "tecRef": "Ana", "idade": float64(17)})

	summaries, err := q.ListCases(context.Background(), ListCasesParams{
		Filter: Filter{Kind: FilterByAgeBracket, Value: "18-29"},
	})
	if err != nil {
		t.Fatalf("ListCases: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("len = %d, want 2 (both endpoints inclusive)", len(summaries))
	}
	got := map[int64]bool{summaries[0].ID: true, summaries[1].ID: true}
	if !got[in18] || !got[in29] {
		t.Errorf("bracket matched %v, want ages 18 and 29", got)
	}
}

func TestListCases_AgeBracketNoUpperBound(t *testing.T) {
	db := openTestDB(t)
	q := New(db)
	userID := createTestUser(t, q, "tecnica1", model.RoleTecnico)

	at60 := createTestCase(t, q, userID, model.Payload{"dataCad": "2026-03-01", "tecRef": "Ana", "idade": float64(60)})
	at205 := createTestCase(t, q, userID, model.Payload{"dataCad": "2026-03-02", "tecRef": "Ana", "idade": float64(205)})
	createTestCase(t, q, userID, model.Payload{"dataCad": "2026-03-03", "tecRef": "Ana", "idade": float64(59)})

	summaries, err := q.ListCases(context.Background(), ListCasesParams{
		Filter: Filter{Kind: FilterByAgeBracket, Value: "60+"},
	})
	if err != nil {
		t.Fatalf("ListCases: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("len = %d, want 2 (implausible ages still land in the last bracket)", len(summaries))
	}
	got := map[int64]bool{summaries[0].ID: true, summaries[1].ID: true}
	if !got[at60] || !got[at205] {
		t.Errorf("bracket matched %v, want ages 60 and 205", got)
	}
}

func TestListCases_RecidivistCaseInsensitive(t *testing.T) {
	db := openTestDB(t)
	q := New(db)
	userID := createTestUser(t, q, "tecnica1", model.RoleTecnico)

	a := createTestCase(t, q, userID, model.Payload{"dataCad": "2026-03-01", "tecRef": "Ana", "reincidente": "Sim"})
	b := createTestCase(t, q, userID, model.Payload{"dataCad": "2026-03-02", "tecRef": "Ana", "reincidente": "sim"})
	createTestCase(t, q, userID, model.Payload{"dataCad": "2026-03-03", "tecRef": "Ana", "reincidente": "Não"})
	createTestCase(t, q, userID, model.Payload{"dataCad": "2026-03-04", "tecRef": "Ana"})

	summaries, err := q.ListCases(context.Background(), ListCasesParams{
		Filter: Filter{Kind: FilterRecidivist},
	})
	if err != nil {
		t.Fatalf("ListCases: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("len = %d, want 2", len(summaries))
	}
	got := map[int64]bool{summaries[0].ID: true, summaries[1].ID: true}
	if !got[a] || !got[b] {
		t.Errorf("recidivist filter matched %v", got)
	}
}

func TestListMonths(t *testing.T) {
	db := openTestDB(t)
	q := New(db)
	userID := createTestUser(t, q, "tecnica1", model.RoleTecnico)

	createTestCase(t, q, userID, model.Payload{"dataCad": "2026-01-05", "tecRef": "Ana"})
	createTestCase(t, q, userID, model.Payload{"dataCad": "2026-01-20", "tecRef": "Ana"})
	createTestCase(t, q, userID, model.Payload{"dataCad": "2026-03-02", "tecRef": "Ana"})

	months, err := q.ListMonths(context.Background())
	if err != nil {
		t.Fatalf("ListMonths: %v", err)
	}
	want := []string{"2026-03", "2026-01"}
	if len(months) != len(want) {
		t.Fatalf("months = %v, want %v", months, want)
	}
	for i := range want {
		if months[i] != want[i] {
			t.Errorf("months[%d] = %q, want %q", i, months[i], want[i])
		}
	}
}

func TestEvents_CreateListPurge(t *testing.T) {
	db := openTestDB(t)
	q := New(db)

	old := time.Now().Add(-48 * time.Hour)
	if _, err := q.CreateEvent(context.Background(), CreateEventParams{
		Level: model.EventLevelInfo, Category: model.EventCategorySystem,
		Message: "old entry", Metadata: "{}", CreatedAt: old,
	}); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if _, err := q.CreateEvent(context.Background(), CreateEventParams{
		Level: model.EventLevelInfo, Category: model.EventCategoryCase,
		Message: "caso.create", Metadata: `{"casoId":1}`, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	events, err := q.ListEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Message != "caso.create" {
		t.Errorf("newest first ordering broken: %q", events[0].Message)
	}

	if err := q.DeleteOldEvents(context.Background(), time.Now().Add(-24*time.Hour)); err != nil {
		t.Fatalf("DeleteOldEvents: %v", err)
	}
	events, err = q.ListEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 || events[0].Message != "caso.create" {
		t.Errorf("after purge = %+v, want only recent entry", events)
	}
}
