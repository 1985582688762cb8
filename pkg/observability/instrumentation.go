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
package observability

// Standard span names for consistency across the query pipeline.
// Use these constants instead of hardcoding strings.
const (
	// Orchestrator spans
	SpanOrchestratorQuery  = "orchestrator.query"
	SpanOrchestratorStage  = "orchestrator.stage"
	SpanOrchestratorFanOut = "orchestrator.fan_out"

	// Intent/entity spans
	SpanIntentExtract = "intent.extract"
	SpanEntityExtract = "entity.extract"

	// Schema spans
	SpanSchemaFetch    = "schema.fetch"
	SpanSchemaRefresh  = "schema.refresh"
	SpanSchemaMerge    = "schema.merge"

	// Synthesizer spans
	SpanSqlSynthesize = "sql.synthesize"
	SpanSqlRepair     = "sql.repair"

	// Safety gate spans
	SpanSafetyCheck = "safety.check"

	// Executor spans
	SpanExecutorRun    = "executor.run"
	SpanExecutorRetry  = "executor.retry"
	SpanBackendConnect = "backend.connect"
	SpanBackendQuery   = "backend.query"

	// Visualization spans
	SpanVisualizationChoose = "visualization.choose"

	// LLM spans
	SpanLLMCompletion = "llm.completion"
	SpanLLMTokenize   = "llm.tokenize" // #nosec G101 -- not a credential, just span name

	// Cache spans
	SpanCacheLookup = "cache.lookup"
	SpanCacheStore  = "cache.store"
)

// Standard metric names for consistency.
const (
	// Query metrics
	MetricQueriesTotal    = "query.total"
	MetricQueryDuration   = "query.duration"
	MetricQueryDegraded   = "query.degraded.total"
	MetricQueryErrors     = "query.errors.total"

	// LLM metrics
	MetricLLMCalls        = "llm.calls.total"
	MetricLLMLatency      = "llm.latency"
	MetricLLMTokensInput  = "llm.tokens.input"  // #nosec G101 -- not a credential, just metric name
	MetricLLMTokensOutput = "llm.tokens.output" // #nosec G101 -- not a credential, just metric name
	MetricLLMCost         = "llm.cost"
	MetricLLMErrors       = "llm.errors.total"
	MetricLLMFallbacks    = "llm.fallbacks.total"

	// Cache metrics
	MetricCacheHits   = "cache.hits.total"
	MetricCacheMisses = "cache.misses.total"

	// Executor metrics
	MetricExecutorRetries  = "executor.retries.total"
	MetricExecutorRowCount = "executor.rows.returned"

	// Safety gate metrics
	MetricSafetyRejections = "safety.rejections.total"
)

// Standard attribute names for consistency.
// Use these constants for span and event attributes.
const (
	// Request context
	AttrRequestID = "request.id"
	AttrTraceID   = "trace.id"
	AttrSpanID    = "span.id"

	// Backend attributes
	AttrBackendID      = "backend.id"
	AttrBackendDialect = "backend.dialect"
	AttrBackendHost    = "backend.host"
	AttrBackendType    = "backend.type"

	// LLM attributes
	AttrLLMProvider    = "llm.provider"
	AttrLLMModel       = "llm.model"
	AttrLLMTemperature = "llm.temperature"
	AttrLLMMaxTokens   = "llm.max_tokens" // #nosec G101 -- not a credential, just attribute name
	AttrLLMMode        = "llm.mode"       // "text" or "structured_json"

	// Orchestrator attributes
	AttrOrchestratorMode  = "orchestrator.mode" // "route", "coordinate", "collaborate"
	AttrOrchestratorStage = "orchestrator.stage"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
	AttrErrorStack   = "error.stack"

	// Prompt attributes
	AttrPromptKey     = "prompt.key"
	AttrPromptVariant = "prompt.variant"
	AttrPromptVersion = "prompt.version"

	// Intent/entity attributes
	AttrIntentName       = "intent.name"
	AttrIntentConfidence = "intent.confidence"
	AttrEntityCount      = "entity.count"

	// Cache attributes
	AttrCacheKey = "cache.key"
	AttrCacheTTL = "cache.ttl_seconds"
)
