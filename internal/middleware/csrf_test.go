// Copyright (c) 2026 CREAS Digital
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func csrfTestHandler(trustedOrigins []string) http.Handler {
	key := []byte("0123456789abcdef0123456789abcdef")
	return CSRF(key, trustedOrigins)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCSRF_FetchMetadata(t *testing.T) {
	handler := csrfTestHandler(nil)

	tests := []struct {
		name         string
		method       string
		secFetchSite string
		want         int
	}{
		{"cross-site post rejected", http.MethodPost, "cross-site", http.StatusForbidden},
		{"same-origin post allowed", http.MethodPost, "same-origin", http.StatusOK},
		{"direct navigation allowed", http.MethodPost, "none", http.StatusOK},
		{"non-browser client allowed", http.MethodPost, "", http.StatusOK},
		{"cross-site get allowed", http.MethodGet, "cross-site", http.StatusOK},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, "/api/v1/casos", nil)
		if tt.secFetchSite != "" {
			req.Header.Set("Sec-Fetch-Site", tt.secFetchSite)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.want)
		}
	}
}

func TestCSRF_RejectionBody(t *testing.T) {
	handler := csrfTestHandler(nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/casos/1", nil)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "cross_site_rejected") {
		t.Errorf("body = %s, want API error shape", rec.Body.String())
	}
}

func TestCSRF_MiddlewareCreation(t *testing.T) {
	// Trusted origins are host:port values, not full URLs
	handler := csrfTestHandler([]string{"localhost:5173"})
	if handler == nil {
		t.Fatal("handler is nil")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/casos", nil)
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
