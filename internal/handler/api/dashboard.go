// Copyright (c) 2026 CREAS Digital
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"log/slog"
	"net/http"

	"github.com/creasdigital/paefi-go/internal/model"
)

// Dashboard handles GET /api/v1/dashboard. An optional ?mes=YYYY-MM query
// parameter restricts every aggregate to cases registered in that month.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("mes")
	if month != "" {
		parsed, ok := model.ParseMonth(month)
		if !ok {
			WriteValidationError(w, map[string]string{"mes": "Month must be YYYY-MM"})
			return
		}
		month = parsed
	}

	bundle, err := h.dashboard.Bundle(r.Context(), month)
	if err != nil {
		slog.Error("dashboard aggregation failed", "error", err, "month", month)
		WriteInternalError(w, "Failed to compute dashboard")
		return
	}

	WriteSuccess(w, bundle)
}

// Months handles GET /api/v1/dashboard/meses: the month selector values,
// newest first.
func (h *Handler) Months(w http.ResponseWriter, r *http.Request) {
	months, err := h.dashboard.Months(r.Context())
	if err != nil {
		slog.Error("listing dashboard months failed", "error", err)
		WriteInternalError(w, "Failed to list months")
		return
	}

	WriteSuccess(w, months)
}
