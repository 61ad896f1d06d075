// Copyright (c) 2026 CREAS Digital
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"

	"filippo.io/csrf/gorilla"
)

// CSRF returns a middleware that rejects cross-site requests to mutating
// endpoints. Validation relies on Fetch metadata headers, so same-origin
// browser clients need no token plumbing, and non-browser clients that
// send no Origin header pass through. Safe methods are never checked.
//
// The key authenticates tokens for clients on the legacy token path and
// must be at least 32 bytes. trustedOrigins lists host:port values allowed
// to call cross-origin, used in development for a frontend served from a
// different port.
func CSRF(authKey []byte, trustedOrigins []string) func(http.Handler) http.Handler {
	opts := []csrf.Option{csrf.ErrorHandler(http.HandlerFunc(csrfReject))}
	if len(trustedOrigins) > 0 {
		opts = append(opts, csrf.TrustedOrigins(trustedOrigins))
	}
	return csrf.Protect(authKey, opts...)
}

// csrfReject answers failed validations with the API error shape.
func csrfReject(w http.ResponseWriter, r *http.Request) {
	reason := "unknown"
	if err := csrf.FailureReason(r); err != nil {
		reason = err.Error()
	}
	slog.Warn("cross-site request rejected",
		"reason", reason,
		"method", r.Method,
		"path", r.URL.Path,
		"origin", r.Header.Get("Origin"),
		"sec_fetch_site", r.Header.Get("Sec-Fetch-Site"),
	)
	writeJSONError(w, http.StatusForbidden, "cross_site_rejected", "Cross-site request rejected")
}
