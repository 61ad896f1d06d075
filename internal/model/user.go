// Copyright (c) 2026 CREAS Digital
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines domain models and types used throughout the
// application including Case, User, Role, and audit Event structures.
package model

import (
	"database/sql"
	"time"
)

// Role identifies what a principal may see and do. The set is closed: any
// other value carries no capabilities at all.
type Role string

// User roles.
const (
	// RoleTecnico is a front-line technician. Sees and edits only cases
	// they own.
	RoleTecnico Role = "tecnico"
	// RoleCoordenador is the unit coordinator. Sees every case and is the
	// only role allowed to change case status or delete cases.
	RoleCoordenador Role = "coordenador"
	// RoleVigilancia is the read-only oversight role. Sees every case but
	// never identifying fields.
	RoleVigilancia Role = "vigilancia"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleTecnico, RoleCoordenador, RoleVigilancia:
		return true
	}
	return false
}

// SeesAllCases reports whether the role may read cases owned by other users.
// Technicians are restricted to their own caseload.
func (r Role) SeesAllCases() bool {
	return r == RoleCoordenador || r == RoleVigilancia
}

// CanViewIdentifyingFields reports whether responses for this role keep
// subject name, CPF and NIS. Oversight gets aggregate patterns only.
func (r Role) CanViewIdentifyingFields() bool {
	return r != RoleVigilancia
}

// CanMutateStatus reports whether the role may change a case lifecycle
// status.
func (r Role) CanMutateStatus() bool {
	return r == RoleCoordenador
}

// CanDelete reports whether the role may delete cases.
func (r Role) CanDelete() bool {
	return r == RoleCoordenador
}

// CanWriteCases reports whether the role may create or update case records.
// Oversight is strictly read-only.
func (r Role) CanWriteCases() bool {
	return r == RoleTecnico || r == RoleCoordenador
}

// User represents an authenticated principal.
type User struct {
	ID           int64        `json:"id"`
	Username     string       `json:"username"`
	PasswordHash string       `json:"-"` // Never expose in JSON
	Role         Role         `json:"role"`
	Name         string       `json:"name"`
	CreatedAt    time.Time    `json:"created_at"`
	LastLoginAt  sql.NullTime `json:"last_login_at,omitempty"`
}
