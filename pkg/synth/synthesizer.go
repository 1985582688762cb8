// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package synth is the SQL synthesizer: it turns an utterance, its
// classified intent and entities, and one or more schema snapshots into a
// single parameterized domain.SqlArtifact. It never executes anything it
// produces.
package synth

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/querymesh/loomquery/pkg/domain"
	"github.com/querymesh/loomquery/pkg/llmgateway"
	"github.com/querymesh/loomquery/pkg/prompts"
	"github.com/querymesh/loomquery/pkg/types"
)

// SentinelSQL is emitted whenever the synthesizer cannot produce a usable
// statement: empty schema, or every generation attempt returned nothing.
const SentinelSQL = "SELECT 1 AS result"

// defaultTableKeywords is consulted, in order, when the utterance is
// ambiguous about which table it means; the first table whose name
// contains one of these substrings wins.
var defaultTableKeywords = []string{"users", "customers", "orders", "products", "transactions", "data"}

var codeFence = regexp.MustCompile("(?s)```(?:sql)?\\s*(.*?)\\s*```")

// Synthesizer generates and self-validates SQL via the LLM gateway.
type Synthesizer struct {
	gateway *llmgateway.Gateway
	prompts prompts.PromptRegistry
	logger  *zap.Logger
}

func New(gateway *llmgateway.Gateway, registry prompts.PromptRegistry, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{gateway: gateway, prompts: registry, logger: logger}
}

// Input bundles everything the synthesizer needs for one request.
type Input struct {
	Utterance string
	Intent    domain.Intent
	Entities  []domain.Entity
	Schema    domain.MergedSchema
	Dialect   domain.Dialect
	// BackendID is the single backend being targeted when Schema holds only
	// that backend's snapshot; left empty for genuine cross-backend input.
	BackendID string
}

// Synthesize returns a SqlArtifact. It never returns an error: every failure
// path is absorbed into a sentinel statement carrying an explanatory note in
// Rationale, per the pipeline's degraded-path contract.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) domain.SqlArtifact {
	schemaText, tableNames := formatSchema(in.Schema)

	if len(tableNames) == 0 {
		return domain.SqlArtifact{
			BackendID:  in.BackendID,
			Statement:  SentinelSQL,
			Rationale:  "schema is empty; specify a table name to run a real query",
			Confidence: 0.1,
		}
	}

	if s.gateway == nil {
		return domain.SqlArtifact{
			BackendID:  in.BackendID,
			Statement:  SentinelSQL,
			Rationale:  "no LLM provider configured; specify a table name to run a real query",
			Confidence: 0.1,
		}
	}

	hint := ambiguityHint(in.Utterance, tableNames)

	statement, err := s.generate(ctx, in.Dialect, schemaText, in.Utterance, hint)
	if err != nil || strings.TrimSpace(statement) == "" {
		return domain.SqlArtifact{
			BackendID:  in.BackendID,
			Statement:  SentinelSQL,
			Parameters: map[string]any{},
			Rationale:  "synthesis produced no statement; confidence=0.1",
			Confidence: 0.1,
		}
	}

	statement, valid, confidence, notes := s.selfValidate(ctx, in.Dialect, schemaText, statement)
	if !valid {
		if repaired, ok := s.repair(ctx, in.Dialect, schemaText, statement, notes); ok {
			// Re-validate the repaired statement. The repaired SQL is carried
			// forward even when re-validation still reports it invalid; the
			// artifact's Rationale records that so the caller can weigh it.
			var stillValid bool
			repaired, stillValid, confidence, notes = s.selfValidate(ctx, in.Dialect, schemaText, repaired)
			statement = repaired
			if !stillValid {
				notes = append(notes, "statement may still be invalid after repair")
			}
		}
	}

	params := s.resolveParams(ctx, in.Utterance, statement)

	return domain.SqlArtifact{
		BackendID:  in.BackendID,
		Statement:  statement,
		Parameters: params,
		Rationale:  strings.Join(notes, "; "),
		Confidence: confidence,
	}
}

// resolveParams finds every :name placeholder in statement and asks the
// gateway to infer its literal value from the utterance, so the artifact
// satisfies the invariant that every placeholder has a bound value. A
// statement with no placeholders skips the round trip entirely.
func (s *Synthesizer) resolveParams(ctx context.Context, utterance, statement string) map[string]any {
	names := placeholderNames(statement)
	if len(names) == 0 {
		return map[string]any{}
	}

	prompt, err := s.prompts.Get(ctx, "sql.params", map[string]interface{}{
		"utterance":    utterance,
		"statement":    statement,
		"placeholders": strings.Join(names, ", "),
	})
	if err != nil {
		return zeroParams(names)
	}

	resp, err := s.gateway.Complete(ctx, llmgateway.Request{Prompt: prompt, Mode: types.ModeStructuredJSON, Schema: paramsSchema})
	if err != nil {
		return zeroParams(names)
	}

	raw, _ := resp.JSON["params"].(map[string]interface{})
	out := make(map[string]any, len(names))
	for _, n := range names {
		if v, ok := raw[n]; ok {
			out[n] = v
		} else {
			out[n] = nil
		}
	}
	return out
}

func zeroParams(names []string) map[string]any {
	out := make(map[string]any, len(names))
	for _, n := range names {
		out[n] = nil
	}
	return out
}

var placeholderPattern = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)

func placeholderNames(statement string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(statement, -1)
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

var paramsSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"params": map[string]interface{}{"type": "object"},
	},
	"required": []interface{}{"params"},
}

func (s *Synthesizer) generate(ctx context.Context, dialect domain.Dialect, schemaText, utterance, hint string) (string, error) {
	prompt, err := s.prompts.Get(ctx, "sql.synthesize", map[string]interface{}{
		"dialect":           string(dialect),
		"schema":            schemaText,
		"utterance":         utterance,
		"default_table_hint": hint,
	})
	if err != nil {
		return "", err
	}

	resp, err := s.gateway.Complete(ctx, llmgateway.Request{Prompt: prompt, Mode: types.ModeText})
	if err != nil {
		return "", err
	}
	return stripCodeFence(resp.Text), nil
}

type validation struct {
	IsValid    bool     `json:"is_valid"`
	Confidence float64  `json:"confidence"`
	Errors     []string `json:"errors"`
	Warnings   []string `json:"warnings"`
}

func (s *Synthesizer) selfValidate(ctx context.Context, dialect domain.Dialect, schemaText, statement string) (string, bool, float64, []string) {
	prompt, err := s.prompts.Get(ctx, "sql.validate", map[string]interface{}{
		"dialect":   string(dialect),
		"schema":    schemaText,
		"statement": statement,
	})
	if err != nil {
		return statement, true, 0.8, nil
	}

	resp, err := s.gateway.Complete(ctx, llmgateway.Request{Prompt: prompt, Mode: types.ModeStructuredJSON, Schema: validationSchema})
	if err != nil {
		// Validation itself failing is not grounds to discard a statement
		// that generated successfully; treat as valid with a note.
		return statement, true, 0.8, []string{"validation step unavailable"}
	}

	v := decodeValidation(resp.JSON)
	return statement, v.IsValid, v.Confidence, append(v.Errors, v.Warnings...)
}

func (s *Synthesizer) repair(ctx context.Context, dialect domain.Dialect, schemaText, statement string, errs []string) (string, bool) {
	prompt, err := s.prompts.Get(ctx, "sql.repair", map[string]interface{}{
		"dialect":   string(dialect),
		"schema":    schemaText,
		"statement": statement,
		"errors":    strings.Join(errs, "; "),
	})
	if err != nil {
		return statement, false
	}

	resp, err := s.gateway.Complete(ctx, llmgateway.Request{Prompt: prompt, Mode: types.ModeText})
	if err != nil {
		return statement, false
	}
	repaired := stripCodeFence(resp.Text)
	if strings.TrimSpace(repaired) == "" {
		return statement, false
	}
	return repaired, true
}

func stripCodeFence(text string) string {
	if m := codeFence.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// ambiguityHint builds the synthesizer's default-table guidance: a table
// whose name substring-matches defaultTableKeywords, else the first table
// in the snapshot, phrased as a prompt fragment.
func ambiguityHint(utterance string, tableNames []string) string {
	for _, kw := range defaultTableKeywords {
		for _, t := range tableNames {
			if strings.Contains(strings.ToLower(t), kw) {
				return fmt.Sprintf("If the question does not name a table, assume it refers to %q.", t)
			}
		}
	}
	if len(tableNames) > 0 {
		return fmt.Sprintf("If the question does not name a table, assume it refers to %q.", tableNames[0])
	}
	return ""
}

// formatSchema renders a compact tabular prompt fragment. When schema spans
// more than one backend, each table is prefixed with backend_id and a note
// explains the backend_id.table cross-reference convention.
func formatSchema(schema domain.MergedSchema) (string, []string) {
	var b strings.Builder
	var names []string
	crossBackend := len(schema) > 1

	if crossBackend {
		b.WriteString("Cross-backend schema; reference tables as backend_id.table.\n")
	}

	for backendID, snap := range schema {
		for _, t := range snap.Tables {
			label := t.Name
			if crossBackend {
				label = backendID + "." + t.Name
			}
			names = append(names, t.Name)
			b.WriteString(label)
			b.WriteString("(")
			for i, c := range t.Columns {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(c.Name)
				b.WriteString(" ")
				b.WriteString(c.DeclaredType)
			}
			b.WriteString(")")
			if len(t.PrimaryKey) > 0 {
				b.WriteString(" PK(" + strings.Join(t.PrimaryKey, ",") + ")")
			}
			for _, fk := range t.ForeignKeys {
				b.WriteString(fmt.Sprintf(" FK(%s->%s.%s)", strings.Join(fk.Columns, ","), fk.ReferencedTable, strings.Join(fk.ReferencedColumns, ",")))
			}
			b.WriteString("\n")
		}
	}
	return b.String(), names
}

func decodeValidation(raw map[string]interface{}) validation {
	v := validation{IsValid: true, Confidence: 0.8}
	if raw == nil {
		return v
	}
	if b, ok := raw["is_valid"].(bool); ok {
		v.IsValid = b
	}
	if c, ok := raw["confidence"].(float64); ok {
		v.Confidence = c
	}
	if errs, ok := raw["errors"].([]interface{}); ok {
		for _, e := range errs {
			if s, ok := e.(string); ok {
				v.Errors = append(v.Errors, s)
			}
		}
	}
	if warns, ok := raw["warnings"].([]interface{}); ok {
		for _, w := range warns {
			if s, ok := w.(string); ok {
				v.Warnings = append(v.Warnings, s)
			}
		}
	}
	return v
}

var validationSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"is_valid":   map[string]interface{}{"type": "boolean"},
		"confidence": map[string]interface{}{"type": "number"},
		"errors":     map[string]interface{}{"type": "array"},
		"warnings":   map[string]interface{}{"type": "array"},
	},
	"required": []interface{}{"is_valid"},
}
