// Copyright (c) 2026 CREAS Digital
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/creasdigital/paefi-go/internal/cache"
	"github.com/creasdigital/paefi-go/internal/store"
)

// Bundle is the fixed-shape dashboard response. Field names match the wire
// contract consumed by the frontend charts.
type Bundle struct {
	// Scalar indicators
	TotalAtendimentos     int64 `json:"totalAtendimentos"`
	NovosNoMes            int64 `json:"novosNoMes"`
	InseridosPAEFI        int64 `json:"inseridosPAEFI"`
	Reincidentes          int64 `json:"reincidentes"`
	RecebemPBF            int64 `json:"recebemPBF"`
	RecebemBPC            int64 `json:"recebemBPC"`
	ViolenciaConfirmada   int64 `json:"violenciaConfirmada"`
	NotificadosSINAN      int64 `json:"notificadosSINAN"`
	DependenciaFinanceira int64 `json:"dependenciaFinanceira"`
	VitimasPCD            int64 `json:"vitimasPCD"`
	MembroCarcerario      int64 `json:"membroCarcerario"`
	MembroSocioeducacao   int64 `json:"membroSocioeducacao"`

	// Most frequent value per attribute
	MoradiaPrincipal         string `json:"moradiaPrincipal"`
	EscolaridadePrincipal    string `json:"escolaridadePrincipal"`
	ViolenciaPrincipal       string `json:"violenciaPrincipal"`
	LocalOcorrenciaPrincipal string `json:"localOcorrenciaPrincipal"`

	// Chart series, sorted by count descending
	PorTipoViolencia  []store.ValueCount `json:"porTipoViolencia"`
	PorBairro         []store.ValueCount `json:"porBairro"`
	PorSexo           []store.ValueCount `json:"porSexo"`
	PorEncaminhamento []store.ValueCount `json:"porEncaminhamento"`
	PorCanalDenuncia  []store.ValueCount `json:"porCanalDenuncia"`
	PorCorEtnia       []store.ValueCount `json:"porCorEtnia"`

	// Fixed youngest-first bracket order
	PorFaixaEtaria []store.ValueCount `json:"porFaixaEtaria"`
}

// DashboardService computes the dashboard bundle and the month selector
// values.
type DashboardService struct {
	queries *store.Queries
	cache   cache.Cache
}

// NewDashboardService creates a DashboardService. The cache may be nil to
// disable response caching.
func NewDashboardService(db *sql.DB, c cache.Cache) *DashboardService {
	return &DashboardService{queries: store.New(db), cache: c}
}

// nowFunc is a variable so the new-this-month window can be pinned in tests.
var nowFunc = time.Now

// Bundle computes the dashboard for an optional YYYY-MM month filter. The
// sub-aggregates are independent and run concurrently; the first failure
// fails the whole request, no partial bundle is ever returned.
func (s *DashboardService) Bundle(ctx context.Context, month string) (*Bundle, error) {
	cacheKey := "dashboard:" + month
	if s.cache != nil {
		if b, ok := s.cache.Get(ctx, cacheKey); ok {
			var bundle Bundle
			if err := json.Unmarshal(b, &bundle); err == nil {
				return &bundle, nil
			}
		}
	}

	var bundle Bundle
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		bundle.TotalAtendimentos, err = s.queries.CountCases(ctx, month)
		return err
	})
	g.Go(func() (err error) {
		now := nowFunc()
		firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		bundle.NovosNoMes, err = s.queries.CountCasesSince(ctx, firstOfMonth, month)
		return err
	})

	yesFlags := []struct {
		field string
		dst   *int64
	}{
		{"inseridoPAEFI", &bundle.InseridosPAEFI},
		{"reincidente", &bundle.Reincidentes},
		{"recebePBF", &bundle.RecebemPBF},
		{"recebeBPC", &bundle.RecebemBPC},
		{"violenciaConfirmada", &bundle.ViolenciaConfirmada},
		{"notificacaoSINAN", &bundle.NotificadosSINAN},
		{"dependenciaFinanceira", &bundle.DependenciaFinanceira},
		{"vitimaPCD", &bundle.VitimasPCD},
		{"membroCarcerario", &bundle.MembroCarcerario},
		{"membroSocioeducacao", &bundle.MembroSocioeducacao},
	}
	for _, flag := range yesFlags {
		g.Go(func() (err error) {
			*flag.dst, err = s.queries.CountYesFlag(ctx, flag.field, month)
			return err
		})
	}

	principals := []struct {
		field string
		dst   *string
	}{
		{"moradia", &bundle.MoradiaPrincipal},
		{"escolaridade", &bundle.EscolaridadePrincipal},
		{"tipoViolencia", &bundle.ViolenciaPrincipal},
		{"localOcorrencia", &bundle.LocalOcorrenciaPrincipal},
	}
	for _, p := range principals {
		g.Go(func() (err error) {
			*p.dst, err = s.queries.TopValue(ctx, p.field, month)
			return err
		})
	}

	series := []struct {
		field string
		limit int64
		dst   *[]store.ValueCount
	}{
		{"tipoViolencia", 0, &bundle.PorTipoViolencia},
		{"bairro", 5, &bundle.PorBairro},
		{"sexo", 0, &bundle.PorSexo},
		{"encaminhamento", 5, &bundle.PorEncaminhamento},
		{"canalDenuncia", 0, &bundle.PorCanalDenuncia},
		{"corEtnia", 0, &bundle.PorCorEtnia},
	}
	for _, sr := range series {
		g.Go(func() (err error) {
			*sr.dst, err = s.queries.FrequencySeries(ctx, sr.field, month, sr.limit)
			return err
		})
	}

	g.Go(func() (err error) {
		bundle.PorFaixaEtaria, err = s.queries.AgeBracketSeries(ctx, month)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("aggregating dashboard: %w", err)
	}

	if s.cache != nil {
		if b, err := json.Marshal(&bundle); err == nil {
			s.cache.Set(ctx, cacheKey, b)
		}
	}

	return &bundle, nil
}

// Months returns the distinct YYYY-MM values present in the case table for
// the month selector, newest first.
func (s *DashboardService) Months(ctx context.Context) ([]string, error) {
	const cacheKey = "dashboard:months"
	if s.cache != nil {
		if b, ok := s.cache.Get(ctx, cacheKey); ok {
			var months []string
			if err := json.Unmarshal(b, &months); err == nil {
				return months, nil
			}
		}
	}

	months, err := s.queries.ListMonths(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if b, err := json.Marshal(months); err == nil {
			s.cache.Set(ctx, cacheKey, b)
		}
	}

	return months, nil
}

// Invalidate drops cached dashboard responses. Called after any case
// mutation so stale aggregates never outlive the TTL window.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Flush(ctx)
	}
}
