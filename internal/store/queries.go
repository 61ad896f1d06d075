// Copyright (c) 2026 CREAS Digital
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/creasdigital/paefi-go/internal/model"
	"github.com/creasdigital/paefi-go/internal/util"
)

// DBTX is the subset of *sql.DB and *sql.Tx the query layer needs.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries provides parameterized database operations.
type Queries struct {
	db DBTX
}

// New creates a Queries bound to db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// nowFunc is a variable so list filtering relative to "this month" can be
// pinned in tests.
var nowFunc = time.Now

const userColumns = "id, username, password_hash, role, name, created_at, last_login_at"

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Name, &u.CreatedAt, &u.LastLoginAt)
	return u, err
}

// GetUserByID returns one user by primary key.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	return scanUser(q.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

// GetUserByUsername returns one user by unique username.
func (q *Queries) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	return scanUser(q.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ?", username))
}

// CreateUserParams holds the fields for a new user.
type CreateUserParams struct {
	Username     string
	PasswordHash string
	Role         model.Role
	Name         string
}

// CreateUser inserts a user and returns its ID.
func (q *Queries) CreateUser(ctx context.Context, p CreateUserParams) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, role, name, created_at) VALUES (?, ?, ?, ?, ?)",
		p.Username, p.PasswordHash, p.Role, p.Name, time.Now())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateUserLastLogin records a successful login time.
func (q *Queries) UpdateUserLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := q.db.ExecContext(ctx, "UPDATE users SET last_login_at = ? WHERE id = ?", at, id)
	return err
}

// CountUsers returns the number of registered users.
func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}

const caseColumns = "id, data_cad, tec_ref, COALESCE(nome, ''), status, payload, user_id, created_at, updated_at"

func scanCase(row *sql.Row) (model.Case, error) {
	var c model.Case
	var payload string
	err := row.Scan(&c.ID, &c.DataCad, &c.TecRef, &c.Nome, &c.Status, &payload, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return model.Case{}, err
	}
	if err := json.Unmarshal([]byte(payload), &c.Payload); err != nil {
		return model.Case{}, fmt.Errorf("decoding case %d payload: %w", c.ID, err)
	}
	return c, nil
}

// GetCase returns one case with its full payload.
func (q *Queries) GetCase(ctx context.Context, id int64) (model.Case, error) {
	return scanCase(q.db.QueryRowContext(ctx,
		"SELECT "+caseColumns+" FROM casos WHERE id = ?", id))
}

// CreateCaseParams holds the fields for a new case. The payload is stored
// verbatim; the promoted columns must already be derived from it.
type CreateCaseParams struct {
	DataCad string
	TecRef  string
	Nome    string
	Payload model.Payload
	UserID  int64
}

// CreateCase inserts a case and returns its ID.
func (q *Queries) CreateCase(ctx context.Context, p CreateCaseParams) (int64, error) {
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return 0, fmt.Errorf("encoding payload: %w", err)
	}

	var nome any
	if p.Nome != "" {
		nome = p.Nome
	}

	now := time.Now()
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO casos (data_cad, tec_ref, tec_ref_norm, nome, status, payload, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.DataCad, p.TecRef, util.Normalize(p.TecRef), nome, model.StatusAtivo, string(payload), p.UserID, now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateCaseParams holds the merged state persisted by an update. Status and
// owner are deliberately absent: neither changes through a payload merge.
type UpdateCaseParams struct {
	ID      int64
	DataCad string
	TecRef  string
	Nome    string
	Payload model.Payload
}

// UpdateCase persists a merged payload and its re-derived promoted columns.
func (q *Queries) UpdateCase(ctx context.Context, p UpdateCaseParams) error {
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	var nome any
	if p.Nome != "" {
		nome = p.Nome
	}

	res, err := q.db.ExecContext(ctx, `
		UPDATE casos
		SET data_cad = ?, tec_ref = ?, tec_ref_norm = ?, nome = ?, payload = ?, updated_at = ?
		WHERE id = ?`,
		p.DataCad, p.TecRef, util.Normalize(p.TecRef), nome, string(payload), time.Now(), p.ID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

// UpdateCaseStatus changes the lifecycle status of a case.
func (q *Queries) UpdateCaseStatus(ctx context.Context, id int64, status model.CaseStatus) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE casos SET status = ?, updated_at = ? WHERE id = ?", status, time.Now(), id)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

// DeleteCase removes a case record.
func (q *Queries) DeleteCase(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM casos WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

// requireRowAffected maps "no row touched" to sql.ErrNoRows so handlers can
// answer 404 without a prior existence query.
func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CaseSummary is one row of the list endpoint.
type CaseSummary struct {
	ID      int64            `json:"id"`
	DataCad string           `json:"dataCad"`
	TecRef  string           `json:"tecRef"`
	Nome    string           `json:"nome,omitempty"`
	Status  model.CaseStatus `json:"status"`
	Bairro  string           `json:"bairro,omitempty"`
	UserID  int64            `json:"userId"`
}

// ListCases returns case summaries matching p, newest registration first.
// The full matching set is returned; the endpoint is not paginated.
func (q *Queries) ListCases(ctx context.Context, p ListCasesParams) ([]CaseSummary, error) {
	where, args := whereClause(p, nowFunc())

	query := `
		SELECT id, data_cad, tec_ref, COALESCE(nome, ''), status,
		       COALESCE(json_extract(payload, '$.bairro'), ''), user_id
		FROM casos`
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY data_cad DESC, id DESC"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var summaries []CaseSummary
	for rows.Next() {
		var s CaseSummary
		if err := rows.Scan(&s.ID, &s.DataCad, &s.TecRef, &s.Nome, &s.Status, &s.Bairro, &s.UserID); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// ListMonths returns the distinct YYYY-MM months present in the case table,
// newest first. Used to populate the dashboard month selector.
func (q *Queries) ListMonths(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT DISTINCT strftime('%Y-%m', data_cad) AS mes
		FROM casos
		WHERE data_cad != ''
		ORDER BY mes DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var months []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		months = append(months, m)
	}
	return months, rows.Err()
}

// CreateEventParams holds the fields for an audit event.
type CreateEventParams struct {
	Level     string
	Category  string
	Message   string
	UserID    sql.NullInt64
	Metadata  string
	IPAddress string
	CreatedAt time.Time
}

// CreateEvent appends one audit log entry.
func (q *Queries) CreateEvent(ctx context.Context, p CreateEventParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO events (level, category, message, user_id, metadata, ip_address, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Level, p.Category, p.Message, p.UserID, p.Metadata, p.IPAddress, p.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListEvents returns the newest audit entries up to limit.
func (q *Queries) ListEvents(ctx context.Context, limit int64) ([]model.Event, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, level, category, message, user_id, metadata, ip_address, created_at
		FROM events ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Level, &e.Category, &e.Message, &e.UserID, &e.Metadata, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteOldEvents removes audit entries created before cutoff.
func (q *Queries) DeleteOldEvents(ctx context.Context, cutoff time.Time) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM events WHERE created_at < ?", cutoff)
	return err
}
