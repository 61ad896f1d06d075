// Copyright (c) 2026 CREAS Digital
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"strconv"
	"strings"
	"time"
)

// CaseStatus is the lifecycle status of a case.
type CaseStatus string

// Case lifecycle statuses.
const (
	StatusAtivo     CaseStatus = "Ativo"
	StatusDesligado CaseStatus = "Desligado"
	StatusArquivado CaseStatus = "Arquivado"
)

// ValidStatus reports whether s is one of the known lifecycle statuses.
func ValidStatus(s CaseStatus) bool {
	switch s {
	case StatusAtivo, StatusDesligado, StatusArquivado:
		return true
	}
	return false
}

// Payload keys promoted into dedicated columns. These are stripped from the
// stored payload's authority: the column wins on read, and the payload value
// is kept only so a round-trip returns what was submitted.
const (
	FieldDataCad = "dataCad"
	FieldTecRef  = "tecRef"
	FieldNome    = "nome"
)

// Identifying payload keys removed by oversight redaction.
const (
	FieldCPF = "cpf"
	FieldNIS = "nis"
)

// Payload is the semi-structured intake document. All domain fields live
// here except the promoted columns; it is stored as a single JSON column.
type Payload map[string]any

// Merge returns a copy of p with the keys of partial applied on top.
// The contract is a shallow merge: a key present in partial overwrites the
// existing value wholesale (including nested objects), keys absent from
// partial are preserved. Neither input is mutated.
func (p Payload) Merge(partial Payload) Payload {
	merged := make(Payload, len(p)+len(partial))
	for k, v := range p {
		merged[k] = v
	}
	for k, v := range partial {
		merged[k] = v
	}
	return merged
}

// Clone returns a shallow copy of p. Used at the read boundary so redaction
// never touches the stored document.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	c := make(Payload, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// String returns the payload value for key as a string, or "" when the key
// is absent or not textual.
func (p Payload) String(key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// Age returns the payload's idade field as an integer. JSON numbers decode
// as float64; intake forms sometimes submit the age as a string.
func (p Payload) Age() (int, bool) {
	switch v := p["idade"].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// IsYes reports whether a payload flag holds the affirmative intake value.
// Forms submit "Sim"/"sim"; comparison is case-insensitive.
func IsYes(v any) bool {
	s, ok := v.(string)
	return ok && strings.EqualFold(strings.TrimSpace(s), "sim")
}

// Case is one tracked social-services intake record. The payload is the
// authoritative source for every domain field except the promoted columns
// (registration date, technician, subject name, status), which exist for
// indexing and filtering and are re-derived whenever the payload changes.
type Case struct {
	ID        int64      `json:"id"`
	DataCad   string     `json:"dataCad"` // Calendar date, YYYY-MM-DD
	TecRef    string     `json:"tecRef"`
	Nome      string     `json:"nome,omitempty"` // Optional since schema v2
	Status    CaseStatus `json:"status"`
	UserID    int64      `json:"userId"` // Owner, immutable after creation
	Payload   Payload    `json:"-"`
	CreatedAt time.Time  `json:"-"`
	UpdatedAt time.Time  `json:"-"`
}

// PromotedFields extracts the promoted column values from a payload.
// Status is deliberately not derived here: it only changes through the
// role-gated status operation, never through a payload merge.
func PromotedFields(p Payload) (dataCad, tecRef, nome string) {
	return p.String(FieldDataCad), p.String(FieldTecRef), p.String(FieldNome)
}

// ParseMonth validates a YYYY-MM month filter value.
func ParseMonth(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return "", false
	}
	return t.Format("2006-01"), true
}
