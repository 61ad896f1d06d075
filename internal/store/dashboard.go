// Copyright (c) 2026 CREAS Digital
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Payload fields the aggregate queries may address. The JSON path is always
// taken from this closed set, never from request input.
var aggregateFields = map[string]string{
	"bairro":                "$.bairro",
	"sexo":                  "$.sexo",
	"corEtnia":              "$.corEtnia",
	"tipoViolencia":         "$.tipoViolencia",
	"canalDenuncia":         "$.canalDenuncia",
	"localOcorrencia":       "$.localOcorrencia",
	"moradia":               "$.moradia",
	"escolaridade":          "$.escolaridade",
	"encaminhamento":        "$.encaminhamento",
	"reincidente":           "$.reincidente",
	"inseridoPAEFI":         "$.inseridoPAEFI",
	"recebePBF":             "$.recebePBF",
	"recebeBPC":             "$.recebeBPC",
	"violenciaConfirmada":   "$.violenciaConfirmada",
	"notificacaoSINAN":      "$.notificacaoSINAN",
	"dependenciaFinanceira": "$.dependenciaFinanceira",
	"vitimaPCD":             "$.vitimaPCD",
	"membroCarcerario":      "$.membroCarcerario",
	"membroSocioeducacao":   "$.membroSocioeducacao",
}

func aggregatePath(field string) (string, error) {
	path, ok := aggregateFields[field]
	if !ok {
		return "", fmt.Errorf("unknown aggregate field %q", field)
	}
	return path, nil
}

// monthPredicate returns the month-scoping predicate fragment and argument.
// An empty month means no restriction.
func monthPredicate(month string) (string, []any) {
	if month == "" {
		return "", nil
	}
	return "strftime('%Y-%m', data_cad) = ?", []any{month}
}

// CountCases returns the number of cases, optionally scoped to one month.
func (q *Queries) CountCases(ctx context.Context, month string) (int64, error) {
	query := "SELECT COUNT(*) FROM casos"
	pred, args := monthPredicate(month)
	if pred != "" {
		query += " WHERE " + pred
	}
	var n int64
	err := q.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// CountCasesSince returns the number of cases registered on or after the
// given date, scoped to the month when one is supplied.
func (q *Queries) CountCasesSince(ctx context.Context, since time.Time, month string) (int64, error) {
	query := "SELECT COUNT(*) FROM casos WHERE data_cad >= ?"
	args := []any{since.Format("2006-01-02")}
	if pred, predArgs := monthPredicate(month); pred != "" {
		query += " AND " + pred
		args = append(args, predArgs...)
	}
	var n int64
	err := q.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// CountYesFlag counts cases whose payload flag holds the affirmative intake
// value, case-insensitively.
func (q *Queries) CountYesFlag(ctx context.Context, field, month string) (int64, error) {
	path, err := aggregatePath(field)
	if err != nil {
		return 0, err
	}

	query := "SELECT COUNT(*) FROM casos WHERE lower(json_extract(payload, '" + path + "')) = 'sim'"
	var args []any
	if pred, predArgs := monthPredicate(month); pred != "" {
		query += " AND " + pred
		args = append(args, predArgs...)
	}
	var n int64
	err = q.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// ValueCount is one frequency table row.
type ValueCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// TopValue returns the most frequent non-empty value of a payload field.
// Ties break lexicographically on the value, so the result is deterministic
// for a given data set. Returns ("", nil) when no case has the field set.
func (q *Queries) TopValue(ctx context.Context, field, month string) (string, error) {
	path, err := aggregatePath(field)
	if err != nil {
		return "", err
	}

	query := `
		SELECT json_extract(payload, '` + path + `') AS v
		FROM casos
		WHERE v IS NOT NULL AND v != ''`
	var args []any
	if pred, predArgs := monthPredicate(month); pred != "" {
		query += " AND " + pred
		args = append(args, predArgs...)
	}
	query += " GROUP BY v ORDER BY COUNT(*) DESC, v ASC LIMIT 1"

	var v string
	err = q.db.QueryRowContext(ctx, query, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// FrequencySeries returns (value, count) rows for a payload field sorted by
// count descending. A limit of 0 returns every distinct value.
func (q *Queries) FrequencySeries(ctx context.Context, field, month string, limit int64) ([]ValueCount, error) {
	path, err := aggregatePath(field)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT json_extract(payload, '` + path + `') AS v, COUNT(*) AS n
		FROM casos
		WHERE v IS NOT NULL AND v != ''`
	var args []any
	if pred, predArgs := monthPredicate(month); pred != "" {
		query += " AND " + pred
		args = append(args, predArgs...)
	}
	query += " GROUP BY v ORDER BY n DESC, v ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var series []ValueCount
	for rows.Next() {
		var vc ValueCount
		if err := rows.Scan(&vc.Value, &vc.Count); err != nil {
			return nil, err
		}
		series = append(series, vc)
	}
	return series, rows.Err()
}

// AgeBracketSeries counts cases per display age bracket, in the fixed
// youngest-first bracket order regardless of counts.
func (q *Queries) AgeBracketSeries(ctx context.Context, month string) ([]ValueCount, error) {
	series := make([]ValueCount, 0, len(AgeBrackets))
	for _, label := range AgeBrackets {
		pred, args := ageBracketRanges[label].predicate()

		query := `
			SELECT COUNT(*)
			FROM casos
			WHERE ` + pred + `
			  AND json_extract(payload, '` + pathIdade + `') IS NOT NULL`
		if pred, predArgs := monthPredicate(month); pred != "" {
			query += " AND " + pred
			args = append(args, predArgs...)
		}

		var n int64
		if err := q.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
			return nil, err
		}
		series = append(series, ValueCount{Value: label, Count: n})
	}
	return series, nil
}
