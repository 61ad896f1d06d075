// Copyright (c) 2026 CREAS Digital
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/creasdigital/paefi-go/internal/middleware"
	"github.com/creasdigital/paefi-go/internal/model"
	"github.com/creasdigital/paefi-go/internal/store"
)

// caseToRecord flattens a case into one response object: payload fields
// first, promoted columns overlaid on top so the indexed values win any
// disagreement with a stale payload copy.
func caseToRecord(c model.Case) map[string]any {
	record := make(map[string]any, len(c.Payload)+5)
	for k, v := range c.Payload {
		record[k] = v
	}
	record["id"] = c.ID
	record[model.FieldDataCad] = c.DataCad
	record[model.FieldTecRef] = c.TecRef
	record["status"] = c.Status
	record["userId"] = c.UserID
	if c.Nome != "" {
		record[model.FieldNome] = c.Nome
	} else {
		delete(record, model.FieldNome)
	}
	return record
}

// listParams assembles store list parameters from the request, applying
// the technician-role ownership restriction unconditionally.
func listParams(r *http.Request, user *model.User) store.ListCasesParams {
	q := r.URL.Query()
	p := store.ListCasesParams{
		Status:     q.Get("status"),
		Technician: q.Get("technician"),
		Filter:     store.ParseFilter(q.Get("filterKey"), q.Get("filterValue")),
	}
	if !user.Role.SeesAllCases() {
		p.OwnerID = user.ID
	}
	return p
}

// ListCases handles GET /api/v1/casos.
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	summaries, err := h.queries.ListCases(r.Context(), listParams(r, user))
	if err != nil {
		slog.Error("listing cases failed", "error", err, "user_id", user.ID)
		WriteInternalError(w, "Failed to fetch cases")
		return
	}

	WriteSuccess(w, redactSummaries(user.Role, summaries))
}

// GetCase handles GET /api/v1/casos/{id}. The full merged record is
// returned; a technician asking for a case they do not own gets the same
// 404 as a missing case, so existence is not leaked.
func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	id, err := ParseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid case ID")
		return
	}

	c, err := h.queries.GetCase(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "Case not found")
		} else {
			slog.Error("fetching case failed", "error", err, "case_id", id)
			WriteInternalError(w, "Failed to fetch case")
		}
		return
	}

	if !user.Role.SeesAllCases() && c.UserID != user.ID {
		WriteNotFound(w, "Case not found")
		return
	}

	WriteSuccess(w, redactRecord(user.Role, caseToRecord(c)))
}

// CreateCase handles POST /api/v1/casos. The submitted body is persisted
// wholesale as the payload document; registration date and technician are
// the only required fields.
func (h *Handler) CreateCase(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	var payload model.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteBadRequest(w, "Invalid JSON body")
		return
	}

	dataCad, tecRef, nome := model.PromotedFields(payload)
	fieldErrors := make(map[string]string)
	if dataCad == "" {
		fieldErrors[model.FieldDataCad] = "Registration date is required"
	} else if _, err := time.Parse("2006-01-02", dataCad); err != nil {
		fieldErrors[model.FieldDataCad] = "Registration date must be YYYY-MM-DD"
	}
	if tecRef == "" {
		fieldErrors[model.FieldTecRef] = "Responsible technician is required"
	}
	if len(fieldErrors) > 0 {
		WriteValidationError(w, fieldErrors)
		return
	}

	id, err := h.queries.CreateCase(r.Context(), store.CreateCaseParams{
		DataCad: dataCad,
		TecRef:  tecRef,
		Nome:    nome,
		Payload: payload,
		UserID:  user.ID,
	})
	if err != nil {
		slog.Error("creating case failed", "error", err, "user_id", user.ID)
		WriteInternalError(w, "Failed to create case")
		return
	}

	h.audit.Record(r, model.EventCategoryCase, "caso.create", map[string]any{"casoId": id})
	h.dashboard.Invalidate(r.Context())

	WriteCreated(w, map[string]any{"id": id})
}

// UpdateCase handles PUT /api/v1/casos/{id}. The body is shallow-merged
// into the stored payload; promoted columns are re-derived from the merged
// result. Status and owner never change through this path.
func (h *Handler) UpdateCase(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	id, err := ParseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid case ID")
		return
	}

	var partial model.Payload
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		WriteBadRequest(w, "Invalid JSON body")
		return
	}

	existing, err := h.queries.GetCase(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "Case not found")
		} else {
			slog.Error("fetching case failed", "error", err, "case_id", id)
			WriteInternalError(w, "Failed to update case")
		}
		return
	}

	if !user.Role.SeesAllCases() && existing.UserID != user.ID {
		WriteNotFound(w, "Case not found")
		return
	}

	merged := existing.Payload.Merge(partial)
	dataCad, tecRef, nome := model.PromotedFields(merged)
	fieldErrors := make(map[string]string)
	if dataCad == "" {
		fieldErrors[model.FieldDataCad] = "Registration date is required"
	} else if _, err := time.Parse("2006-01-02", dataCad); err != nil {
		fieldErrors[model.FieldDataCad] = "Registration date must be YYYY-MM-DD"
	}
	if tecRef == "" {
		fieldErrors[model.FieldTecRef] = "Responsible technician is required"
	}
	if len(fieldErrors) > 0 {
		WriteValidationError(w, fieldErrors)
		return
	}

	if err := h.queries.UpdateCase(r.Context(), store.UpdateCaseParams{
		ID:      id,
		DataCad: dataCad,
		TecRef:  tecRef,
		Nome:    nome,
		Payload: merged,
	}); err != nil {
		slog.Error("updating case failed", "error", err, "case_id", id)
		WriteInternalError(w, "Failed to update case")
		return
	}

	h.audit.Record(r, model.EventCategoryCase, "caso.update", map[string]any{"casoId": id})
	h.dashboard.Invalidate(r.Context())

	updated := existing
	updated.DataCad = dataCad
	updated.TecRef = tecRef
	updated.Nome = nome
	updated.Payload = merged
	WriteSuccess(w, redactRecord(user.Role, caseToRecord(updated)))
}

// statusRequest is the body of the status change endpoint.
type statusRequest struct {
	Status model.CaseStatus `json:"status"`
}

// UpdateStatus handles PUT /api/v1/casos/{id}/status. Coordinator only;
// the route is gated by middleware on Role.CanMutateStatus.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid case ID")
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON body")
		return
	}
	if !model.ValidStatus(req.Status) {
		WriteValidationError(w, map[string]string{
			"status": "Status must be Ativo, Desligado or Arquivado",
		})
		return
	}

	if err := h.queries.UpdateCaseStatus(r.Context(), id, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "Case not found")
		} else {
			slog.Error("updating case status failed", "error", err, "case_id", id)
			WriteInternalError(w, "Failed to update status")
		}
		return
	}

	h.audit.Record(r, model.EventCategoryCase, "caso.status", map[string]any{"casoId": id, "status": req.Status})
	h.dashboard.Invalidate(r.Context())

	WriteSuccess(w, map[string]any{"id": id, "status": req.Status})
}

// DeleteCase handles DELETE /api/v1/casos/{id}. Coordinator only; the
// route is gated by middleware on Role.CanDelete.
func (h *Handler) DeleteCase(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid case ID")
		return
	}

	if err := h.queries.DeleteCase(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "Case not found")
		} else {
			slog.Error("deleting case failed", "error", err, "case_id", id)
			WriteInternalError(w, "Failed to delete case")
		}
		return
	}

	h.audit.Record(r, model.EventCategoryCase, "caso.delete", map[string]any{"casoId": id})
	h.dashboard.Invalidate(r.Context())

	w.WriteHeader(http.StatusNoContent)
}

// exportHeader is the XLSX column layout of the case export.
var exportHeader = []string{"ID", "Data de Cadastro", "Técnico de Referência", "Nome", "Status", "Bairro"}

// ExportCases handles GET /api/v1/casos/export: the current filtered list
// as an XLSX workbook, redacted the same way as the JSON response.
func (h *Handler) ExportCases(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	summaries, err := h.queries.ListCases(r.Context(), listParams(r, user))
	if err != nil {
		slog.Error("listing cases for export failed", "error", err, "user_id", user.ID)
		WriteInternalError(w, "Failed to fetch cases")
		return
	}
	summaries = redactSummaries(user.Role, summaries)

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Casos"
	f.SetSheetName("Sheet1", sheet)

	for col, title := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheet, cell, title)
	}
	for row, s := range summaries {
		values := []any{s.ID, s.DataCad, s.TecRef, s.Nome, string(s.Status), s.Bairro}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	filename := fmt.Sprintf("casos-%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := f.Write(w); err != nil {
		slog.Error("writing case export failed", "error", err)
	}
}
