package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/creasdigital/paefi-go/internal/auth"
	"github.com/creasdigital/paefi-go/internal/model"
)

// Default coordinator credentials, intended for first login only.
const (
	DefaultAdminUsername = "coordenacao"
	DefaultAdminPassword = "changeme"
	DefaultAdminName     = "Coordenação PAEFI"
)

// Seed creates the initial coordinator account when no users exist yet.
func Seed(ctx context.Context, db *sql.DB) error {
	queries := New(db)

	_, err := queries.GetUserByUsername(ctx, DefaultAdminUsername)
	if err == nil {
		slog.Info("coordinator user already exists, skipping seed")
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking for coordinator user: %w", err)
	}

	passwordHash, err := auth.HashPassword(DefaultAdminPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	id, err := queries.CreateUser(ctx, CreateUserParams{
		Username:     DefaultAdminUsername,
		PasswordHash: passwordHash,
		Role:         model.RoleCoordenador,
		Name:         DefaultAdminName,
	})
	if err != nil {
		return fmt.Errorf("creating coordinator user: %w", err)
	}

	slog.Info("created default coordinator user",
		"id", id,
		"username", DefaultAdminUsername,
		"password", DefaultAdminPassword,
	)

	return nil
}

// SeedDemo inserts a small demonstration caseload when enabled and the case
// table is empty. Never runs against a populated database.
func SeedDemo(ctx context.Context, db *sql.DB, enabled bool) error {
	if !enabled {
		return nil
	}

	queries := New(db)

	n, err := queries.CountCases(ctx, "")
	if err != nil {
		return fmt.Errorf("counting cases: %w", err)
	}
	if n > 0 {
		slog.Info("case table not empty, skipping demo seed")
		return nil
	}

	owner, err := queries.GetUserByUsername(ctx, DefaultAdminUsername)
	if err != nil {
		return fmt.Errorf("loading seed owner: %w", err)
	}

	demos := []model.Payload{
		{
			"dataCad": "2024-03-04", "tecRef": "Maria Souza", "nome": "A. L. Pereira",
			"bairro": "Centro", "idade": 34, "sexo": "Feminino", "corEtnia": "Parda",
			"tipoViolencia": "Violência física", "canalDenuncia": "Disque 100",
			"reincidente": "Não", "inseridoPAEFI": "Sim", "recebePBF": "Sim",
		},
		{
			"dataCad": "2024-03-18", "tecRef": "João Carvalho", "nome": "R. F. Lima",
			"bairro": "Santa Luzia", "idade": 9, "sexo": "Masculino", "corEtnia": "Branca",
			"tipoViolencia": "Negligência", "canalDenuncia": "Conselho Tutelar",
			"reincidente": "Sim", "inseridoPAEFI": "Sim", "recebeBPC": "Não",
		},
		{
			"dataCad": "2024-04-02", "tecRef": "Maria Souza",
			"bairro": "Boa Vista", "idade": 67, "sexo": "Feminino", "corEtnia": "Preta",
			"tipoViolencia": "Violência patrimonial", "canalDenuncia": "Demanda espontânea",
			"reincidente": "Não", "inseridoPAEFI": "Não", "recebeBPC": "Sim",
		},
	}

	for _, payload := range demos {
		dataCad, tecRef, nome := model.PromotedFields(payload)
		if _, err := queries.CreateCase(ctx, CreateCaseParams{
			DataCad: dataCad,
			TecRef:  tecRef,
			Nome:    nome,
			Payload: payload,
			UserID:  owner.ID,
		}); err != nil {
			return fmt.Errorf("seeding demo case: %w", err)
		}
	}

	slog.Info("seeded demo cases", "count", len(demos))
	return nil
}
