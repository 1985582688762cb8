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
package domain

// IntentName is the closed set of recognized user intents. Intent
// classification must never return a name outside this set.
type IntentName string

const (
	IntentQueryData        IntentName = "QUERY_DATA"
	IntentSummarizeData    IntentName = "SUMMARIZE_DATA"
	IntentSchemaInfo       IntentName = "SCHEMA_INFO"
	IntentDataVisualization IntentName = "DATA_VISUALIZATION"
	IntentComparison       IntentName = "COMPARISON"
	IntentTrendAnalysis    IntentName = "TREND_ANALYSIS"
	IntentCorrelation      IntentName = "CORRELATION"
)

// ValidIntentNames enumerates the closed intent set for validation.
var ValidIntentNames = map[IntentName]bool{
	IntentQueryData:         true,
	IntentSummarizeData:     true,
	IntentSchemaInfo:        true,
	IntentDataVisualization: true,
	IntentComparison:        true,
	IntentTrendAnalysis:     true,
	IntentCorrelation:       true,
}

// Intent is produced once per request; it is never persisted.
type Intent struct {
	Name        IntentName `json:"name"`
	Confidence  float64    `json:"confidence"`
	Description string     `json:"description,omitempty"`
}

// EntityKind discriminates the Entity tagged union.
type EntityKind string

const (
	EntityTable       EntityKind = "table"
	EntityColumn      EntityKind = "column"
	EntityFilter      EntityKind = "filter"
	EntityAggregation EntityKind = "aggregation"
	EntityTimeRange   EntityKind = "time_range"
)

// AggregationFn is the closed set of supported aggregation functions.
type AggregationFn string

const (
	AggCount AggregationFn = "count"
	AggSum   AggregationFn = "sum"
	AggAvg   AggregationFn = "avg"
	AggMin   AggregationFn = "min"
	AggMax   AggregationFn = "max"
)

// Entity is a tagged union extracted from the user's utterance. Only the
// fields relevant to Kind are populated.
type Entity struct {
	Kind       EntityKind `json:"kind"`
	Confidence float64    `json:"confidence"`

	// EntityTable / EntityColumn
	Name string `json:"name,omitempty"`

	// EntityFilter
	Column string `json:"column,omitempty"`
	Op     string `json:"op,omitempty"`
	Value  string `json:"value,omitempty"`

	// EntityAggregation
	Fn AggregationFn `json:"fn,omitempty"`

	// EntityTimeRange
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}
