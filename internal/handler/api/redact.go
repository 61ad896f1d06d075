// Copyright (c) 2026 CREAS Digital
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"github.com/creasdigital/paefi-go/internal/model"
	"github.com/creasdigital/paefi-go/internal/store"
)

// Keys removed from oversight responses. "nome" identifies the subject,
// "cpf" is the national ID, "nis" the social program ID.
var identifyingKeys = []string{model.FieldNome, model.FieldCPF, model.FieldNIS}

// redactRecord strips identifying fields from one response object for
// roles that may not see them. The transform is pure: it returns a copy
// and never mutates its input, so stored data is untouched. For any role
// with identifying-field access it is the identity function.
//
// Identifying keys are removed at the top level and, when the record
// carries a nested "payload" object, inside that object as well. Missing
// keys are a no-op, never an error.
func redactRecord(role model.Role, record map[string]any) map[string]any {
	if role.CanViewIdentifyingFields() || record == nil {
		return record
	}

	out := make(map[string]any, len(record))
	for k, v := range record {
		out[k] = v
	}
	for _, key := range identifyingKeys {
		delete(out, key)
	}

	if nested, ok := out["payload"].(map[string]any); ok {
		payload := make(map[string]any, len(nested))
		for k, v := range nested {
			payload[k] = v
		}
		for _, key := range identifyingKeys {
			delete(payload, key)
		}
		out["payload"] = payload
	}

	return out
}

// redactSummaries clears the subject name on list rows for oversight
// callers. Summaries carry no other identifying field.
func redactSummaries(role model.Role, summaries []store.CaseSummary) []store.CaseSummary {
	if role.CanViewIdentifyingFields() {
		return summaries
	}
	out := make([]store.CaseSummary, len(summaries))
	for i, s := range summaries {
		s.Nome = ""
		out[i] = s
	}
	return out
}
