// Copyright (c) 2026 CREAS Digital
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"strings"
	"time"

	"github.com/creasdigital/paefi-go/internal/util"
)

// FilterKind enumerates the canned list filters. Each kind maps to exactly
// one SQL predicate; there is no free-form querying.
type FilterKind int

// Canned filter kinds.
const (
	FilterNone FilterKind = iota
	FilterAll
	FilterNewThisMonth
	FilterRecidivist
	FilterEnrolled
	FilterByNeighborhood
	FilterByViolenceType
	FilterByChannel
	FilterBySex
	FilterByEthnicity
	FilterByAgeBracket
)

// Filter is one canned filter selection. Value is only meaningful for the
// by-* kinds.
type Filter struct {
	Kind  FilterKind
	Value string
}

// filterKeys maps the wire names accepted on the list endpoint to kinds.
var filterKeys = map[string]FilterKind{
	"all":                 FilterAll,
	"new-this-month":      FilterNewThisMonth,
	"recidivist":          FilterRecidivist,
	"enrolled-in-program": FilterEnrolled,
	"by-neighborhood":     FilterByNeighborhood,
	"by-violence-type":    FilterByViolenceType,
	"by-channel":          FilterByChannel,
	"by-sex":              FilterBySex,
	"by-ethnicity":        FilterByEthnicity,
	"by-age-bracket":      FilterByAgeBracket,
}

// ParseFilter resolves a wire filter name and value to a Filter.
// Unknown names yield FilterNone: the request proceeds unfiltered rather
// than failing, matching the permissive behavior of the original endpoint.
func ParseFilter(key, value string) Filter {
	kind, ok := filterKeys[key]
	if !ok {
		return Filter{Kind: FilterNone}
	}
	return Filter{Kind: kind, Value: value}
}

// ageBracket is an inclusive integer range over the payload age field.
// The last display bracket has no upper bound.
type ageBracket struct {
	min, max int
	open     bool
}

// predicate returns the parameterized SQL fragment matching the bracket.
func (b ageBracket) predicate() (string, []any) {
	age := "CAST(json_extract(payload, '" + pathIdade + "') AS INTEGER)"
	if b.open {
		return age + " >= ?", []any{b.min}
	}
	return age + " BETWEEN ? AND ?", []any{b.min, b.max}
}

// AgeBrackets lists the five display brackets in fixed youngest-first
// order. The dashboard series and the by-age-bracket filter share them.
var AgeBrackets = []string{"0-11", "12-17", "18-29", "30-59", "60+"}

var ageBracketRanges = map[string]ageBracket{
	"0-11":  {min: 0, max: 11},
	"12-17": {min: 12, max: 17},
	"18-29": {min: 18, max: 29},
	"30-59": {min: 30, max: 59},
	"60+":   {min: 60, open: true},
}

// ListCasesParams selects which case summaries to return.
type ListCasesParams struct {
	// Status restricts to one lifecycle status. Empty means the default
	// "Ativo"; "all" removes the status predicate entirely.
	Status string
	// Technician is a substring match on the responsible technician,
	// case- and accent-insensitive.
	Technician string
	// Filter is the canned filter selection.
	Filter Filter
	// OwnerID, when non-zero, restricts to cases owned by that user. Set
	// unconditionally for technician-role callers.
	OwnerID int64
}

// payload column JSON paths used by filter predicates.
const (
	pathReincidente   = "$.reincidente"
	pathInseridoPAEFI = "$.inseridoPAEFI"
	pathIdade         = "$.idade"
)

// whereClause assembles the parameterized predicate set for p. It returns
// the conjunction (without the WHERE keyword, empty when unrestricted) and
// the matching argument list. User input only ever flows into arguments,
// never into the SQL text.
func whereClause(p ListCasesParams, now time.Time) (string, []any) {
	var preds []string
	var args []any

	status := p.Status
	if status == "" {
		status = "Ativo"
	}
	if p.Filter.Kind == FilterAll {
		status = "all"
	}
	if status != "all" {
		preds = append(preds, "status = ?")
		args = append(args, status)
	}

	if p.Technician != "" {
		preds = append(preds, "tec_ref_norm LIKE ?")
		args = append(args, "%"+util.Normalize(p.Technician)+"%")
	}

	if p.OwnerID != 0 {
		preds = append(preds, "user_id = ?")
		args = append(args, p.OwnerID)
	}

	switch p.Filter.Kind {
	case FilterNewThisMonth:
		firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		preds = append(preds, "data_cad >= ?")
		args = append(args, firstOfMonth.Format("2006-01-02"))
	case FilterRecidivist:
		preds = append(preds, "lower(json_extract(payload, '"+pathReincidente+"')) = 'sim'")
	case FilterEnrolled:
		preds = append(preds, "lower(json_extract(payload, '"+pathInseridoPAEFI+"')) = 'sim'")
	case FilterByNeighborhood:
		preds = append(preds, "json_extract(payload, '$.bairro') = ?")
		args = append(args, p.Filter.Value)
	case FilterByViolenceType:
		preds = append(preds, "json_extract(payload, '$.tipoViolencia') = ?")
		args = append(args, p.Filter.Value)
	case FilterByChannel:
		preds = append(preds, "json_extract(payload, '$.canalDenuncia') = ?")
		args = append(args, p.Filter.Value)
	case FilterBySex:
		preds = append(preds, "json_extract(payload, '$.sexo') = ?")
		args = append(args, p.Filter.Value)
	case FilterByEthnicity:
		preds = append(preds, "json_extract(payload, '$.corEtnia') = ?")
		args = append(args, p.Filter.Value)
	case FilterByAgeBracket:
		// Unrecognized bracket labels add no predicate. Inherited
		// permissiveness: the original silently ignored them too.
		if b, ok := ageBracketRanges[strings.TrimSpace(p.Filter.Value)]; ok {
			pred, predArgs := b.predicate()
			preds = append(preds, pred)
			args = append(args, predArgs...)
		}
	}

	return strings.Join(preds, " AND "), args
}
