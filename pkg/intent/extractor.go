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

// Package intent classifies a user utterance into the closed intent set and
// extracts the entities (tables, columns, filters, aggregations, time
// ranges) the synthesizer needs. Classification prefers the LLM gateway and
// falls back to a deterministic keyword classifier so the pipeline keeps
// working with no LLM provider configured at all.
package intent

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/querymesh/loomquery/pkg/domain"
	"github.com/querymesh/loomquery/pkg/llmgateway"
	"github.com/querymesh/loomquery/pkg/types"
)

// keywordGroups is the ordered fallback classifier: the first group whose
// keyword is found (case-insensitively) as a substring of the utterance
// wins. Order matters — more specific intents are checked before the
// general QUERY_DATA catch-all.
var keywordGroups = []struct {
	name     domain.IntentName
	keywords []string
}{
	{domain.IntentDataVisualization, []string{"chart", "plot", "graph", "visuali"}},
	{domain.IntentTrendAnalysis, []string{"trend", "over time", "growth"}},
	{domain.IntentCorrelation, []string{"correlat", "relationship between"}},
	{domain.IntentComparison, []string{"compare", "versus", " vs "}},
	{domain.IntentSummarizeData, []string{"summarize", "summary", "overview"}},
	{domain.IntentSchemaInfo, []string{"schema", "what tables", "columns are", "structure of"}},
}

const fallbackConfidence = 0.6

// Extractor classifies intent and extracts entities for one utterance.
type Extractor struct {
	gateway *llmgateway.Gateway
	logger  *zap.Logger
}

func New(gateway *llmgateway.Gateway, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{gateway: gateway, logger: logger}
}

type intentPayload struct {
	Name        string  `json:"name"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
}

// ClassifyIntent returns the utterance's intent. On ProviderUnavailable or
// Invalid from the gateway, it recovers via the keyword classifier rather
// than propagating the failure — per the error taxonomy, IntentError only
// ever surfaces after the fallback itself fails to produce anything.
func (x *Extractor) ClassifyIntent(ctx context.Context, utterance, schemaContext string) (domain.Intent, error) {
	if x.gateway == nil {
		return keywordClassify(utterance), nil
	}

	resp, err := x.gateway.Complete(ctx, llmgateway.Request{
		System: "Classify the user's question into exactly one intent from the closed set: " +
			"QUERY_DATA, SUMMARIZE_DATA, SCHEMA_INFO, DATA_VISUALIZATION, COMPARISON, TREND_ANALYSIS, CORRELATION. " +
			"Respond with JSON: {\"name\": string, \"confidence\": number, \"description\": string}.",
		Prompt: "Schema:\n" + schemaContext + "\n\nQuestion: " + utterance,
		Mode:   types.ModeStructuredJSON,
		Schema: intentSchema,
	})
	if err != nil {
		x.logger.Info("intent: gateway classification failed, using keyword fallback", zap.Error(err))
		return keywordClassify(utterance), nil
	}

	var payload intentPayload
	b, _ := json.Marshal(resp.JSON)
	if err := json.Unmarshal(b, &payload); err != nil {
		return keywordClassify(utterance), nil
	}

	name := domain.IntentName(payload.Name)
	if !domain.ValidIntentNames[name] {
		return keywordClassify(utterance), nil
	}
	return domain.Intent{Name: name, Confidence: payload.Confidence, Description: payload.Description}, nil
}

// keywordClassify is the deterministic fallback: an ordered substring match
// against keywordGroups, defaulting to QUERY_DATA.
func keywordClassify(utterance string) domain.Intent {
	lower := strings.ToLower(utterance)
	for _, group := range keywordGroups {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return domain.Intent{Name: group.name, Confidence: fallbackConfidence, Description: "keyword classifier"}
			}
		}
	}
	return domain.Intent{Name: domain.IntentQueryData, Confidence: fallbackConfidence, Description: "keyword classifier default"}
}

type entityPayload struct {
	Entities []struct {
		Kind       string  `json:"kind"`
		Confidence float64 `json:"confidence"`
		Name       string  `json:"name"`
		Column     string  `json:"column"`
		Op         string  `json:"op"`
		Value      string  `json:"value"`
		Fn         string  `json:"fn"`
		Start      string  `json:"start"`
		End        string  `json:"end"`
	} `json:"entities"`
}

// ExtractEntities returns the entities found in utterance, or an empty
// sequence (never an error) when the gateway is unavailable or returns
// something unparseable.
func (x *Extractor) ExtractEntities(ctx context.Context, utterance, schemaContext string) []domain.Entity {
	if x.gateway == nil {
		return nil
	}

	resp, err := x.gateway.Complete(ctx, llmgateway.Request{
		System: "Extract query entities from the user's question: tables, columns, filters " +
			"(column/op/value), aggregations (count|sum|avg|min|max), and time ranges (start/end). " +
			"Respond with JSON: {\"entities\": [{\"kind\": \"table|column|filter|aggregation|time_range\", ...}]}.",
		Prompt: "Schema:\n" + schemaContext + "\n\nQuestion: " + utterance,
		Mode:   types.ModeStructuredJSON,
		Schema: entitySchema,
	})
	if err != nil {
		x.logger.Info("intent: entity extraction failed, returning empty set", zap.Error(err))
		return nil
	}

	var payload entityPayload
	b, _ := json.Marshal(resp.JSON)
	if err := json.Unmarshal(b, &payload); err != nil {
		return nil
	}

	out := make([]domain.Entity, 0, len(payload.Entities))
	for _, e := range payload.Entities {
		kind := domain.EntityKind(e.Kind)
		switch kind {
		case domain.EntityTable, domain.EntityColumn, domain.EntityFilter, domain.EntityAggregation, domain.EntityTimeRange:
		default:
			continue
		}
		out = append(out, domain.Entity{
			Kind:       kind,
			Confidence: e.Confidence,
			Name:       e.Name,
			Column:     e.Column,
			Op:         e.Op,
			Value:      e.Value,
			Fn:         domain.AggregationFn(e.Fn),
			Start:      e.Start,
			End:        e.End,
		})
	}
	return out
}

var intentSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"name":        map[string]interface{}{"type": "string"},
		"confidence":  map[string]interface{}{"type": "number"},
		"description": map[string]interface{}{"type": "string"},
	},
	"required": []interface{}{"name", "confidence"},
}

var entitySchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"entities": map[string]interface{}{"type": "array"},
	},
}
