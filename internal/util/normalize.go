// Copyright (c) 2026 CREAS Digital
// SPDX-License-Identifier: GPL-3.0-or-later

// Package util provides small shared helpers.
package util

import (
	"strings"

	"github.com/mozillazg/go-unidecode"
)

// Normalize lowercases s and transliterates accented characters to ASCII,
// so "José" and "jose" compare equal. Used for the technician search column
// and its query values.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(unidecode.Unidecode(s)))
}
