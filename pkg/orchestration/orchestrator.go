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

// Package orchestration is the state machine that sequences every other
// component: PARSE (intent/entities) and SCHEMA run concurrently, then
// SYNTHESIZE, GATE, EXECUTE, VISUALIZE run in order. Every terminal state
// produces a well-formed domain.Envelope; no stage panics or returns an
// error across the package boundary.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/querymesh/loomquery/pkg/domain"
	"github.com/querymesh/loomquery/pkg/executor"
	"github.com/querymesh/loomquery/pkg/fabric"
	"github.com/querymesh/loomquery/pkg/intent"
	"github.com/querymesh/loomquery/pkg/observability"
	"github.com/querymesh/loomquery/pkg/registry"
	"github.com/querymesh/loomquery/pkg/safety"
	"github.com/querymesh/loomquery/pkg/schemacache"
	"github.com/querymesh/loomquery/pkg/synth"
	"github.com/querymesh/loomquery/pkg/types"
	"github.com/querymesh/loomquery/pkg/visualization"
)

// Mode selects how the orchestrator sequences and scopes its work.
type Mode string

const (
	ModeRoute       Mode = "route"
	ModeCoordinate  Mode = "coordinate"
	ModeCollaborate Mode = "collaborate"
)

// Request is one caller-issued query.
type Request struct {
	Utterance string
	BackendID string // empty means cross-backend; fan-out intent inferred from phrasing
	Mode      Mode
	MaxRows   int
	Timeout   time.Duration
}

// Config wires every component the orchestrator sequences.
type Config struct {
	Registry    *registry.Registry
	SchemaCache *schemacache.Cache
	Synth       *synth.Synthesizer
	Intent      *intent.Extractor
	Executor    *executor.Executor
	Viz         *visualization.Selector

	Tracer           observability.Tracer
	Logger           *zap.Logger
	ProgressCallback types.ProgressCallback

	// Guardrails suggests a corrected statement when EXECUTE fails; nil
	// falls back to a freshly constructed engine with no error history.
	Guardrails *fabric.GuardrailEngine
}

// Orchestrator runs the PARSE→SCHEMA→SYNTHESIZE→GATE→EXECUTE→VISUALIZE
// pipeline for one request at a time; it holds no per-request state between
// calls to Run.
type Orchestrator struct {
	cfg Config
}

func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewNoOpTracer()
	}
	if cfg.Viz == nil {
		cfg.Viz = visualization.NewSelector()
	}
	if cfg.Guardrails == nil {
		cfg.Guardrails = fabric.NewGuardrailEngine()
	}
	return &Orchestrator{cfg: cfg}
}

// crossBackendPhrases triggers fan-out execution when no backend_id is
// given and the utterance itself asks for a cross-database aggregate.
var crossBackendPhrases = []string{"all databases", "across all", "every database", "all backends"}

// Run executes the state machine for one request and always returns a
// well-formed envelope, tagging RequestID events onto the progress callback
// configured at construction, if any.
func (o *Orchestrator) Run(ctx context.Context, requestID string, req Request) domain.Envelope {
	return o.run(ctx, requestID, req, o.cfg.ProgressCallback)
}

// RunWithProgress executes the same state machine as Run but publishes stage
// transitions to progress instead of (or in addition to) the callback fixed
// at construction. Used by the SSE streaming endpoint, where each request
// needs its own subscriber rather than a single process-wide callback.
func (o *Orchestrator) RunWithProgress(ctx context.Context, requestID string, req Request, progress types.ProgressCallback) domain.Envelope {
	return o.run(ctx, requestID, req, progress)
}

func (o *Orchestrator) run(ctx context.Context, requestID string, req Request, progress types.ProgressCallback) domain.Envelope {
	if req.Timeout <= 0 {
		req.Timeout = executor.DefaultTimeout
	}
	if req.MaxRows <= 0 {
		req.MaxRows = executor.DefaultMaxRows
	}

	o.emit(progress, requestID, types.StageParse, "starting")

	fanOut := req.BackendID == "" && mentionsAllBackends(req.Utterance)

	intentResult, entities, schema, err := o.parseAndSchema(ctx, requestID, req, fanOut)
	if err != nil {
		return o.degraded(progress, requestID, req, domain.SqlArtifact{Statement: synth.SentinelSQL}, nil, entities, err, "schema")
	}

	// route mode uses intent to select a single downstream path and returns
	// only that path's output; SCHEMA_INFO never reaches SYNTHESIZE at all.
	if req.Mode == ModeRoute && intentResult.Name == domain.IntentSchemaInfo {
		o.emit(progress, requestID, types.StageDone, "complete")
		return domain.Envelope{
			Status:   domain.StatusSuccess,
			Intent:   &intentResult,
			Entities: entities,
			Schema:   schema,
		}
	}

	o.emit(progress, requestID, types.StageSynthesize, "generating SQL")
	artifact := o.synthesizeCandidate(ctx, req, synth.Input{
		Utterance: req.Utterance,
		Intent:    intentResult,
		Entities:  entities,
		Schema:    schema,
		Dialect:   dialectFor(o.cfg.Registry, req.BackendID),
		BackendID: req.BackendID,
	})

	if artifact.Statement == "" {
		return o.degraded(progress, requestID, req, artifact, &intentResult, entities, &domain.SqlGenerationError{Attempts: 1}, "synthesize")
	}

	o.emit(progress, requestID, types.StageGate, "validating statement")
	readOnly := false
	if req.BackendID != "" {
		if cfg, err := backendConfig(o.cfg.Registry, req.BackendID); err == nil {
			readOnly = cfg.ReadOnly
		}
	}
	if result := safety.Check(artifact, readOnly); !result.OK {
		return o.degraded(progress, requestID, req, artifact, &intentResult, entities, result.Rejected(artifact.Statement), "gate")
	}

	o.emit(progress, requestID, types.StageExecute, "executing")
	if fanOut {
		return o.runFanOut(progress, ctx, requestID, req, artifact, intentResult, entities)
	}
	if req.Mode == ModeRoute {
		if intentResult.Name == domain.IntentDataVisualization {
			return o.runRouteVisualize(progress, ctx, requestID, req, artifact, intentResult, entities)
		}
		return o.runRouteSQL(progress, ctx, requestID, req, artifact, intentResult, entities)
	}
	return o.runSingle(progress, ctx, requestID, req, artifact, intentResult, entities)
}

// synthesizeCandidate generates the SQL artifact to carry forward. In
// collaborate mode it picks the highest-confidence of however many
// candidates were generated; at present the synthesizer only ever produces
// one, so this degenerates to that single candidate, but the selection
// leaves room for a future synthesizer that generates several in parallel.
func (o *Orchestrator) synthesizeCandidate(ctx context.Context, req Request, in synth.Input) domain.SqlArtifact {
	candidates := []domain.SqlArtifact{o.cfg.Synth.Synthesize(ctx, in)}
	if req.Mode != ModeCollaborate {
		return candidates[0]
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}
	return best
}

func (o *Orchestrator) parseAndSchema(ctx context.Context, requestID string, req Request, fanOut bool) (domain.Intent, []domain.Entity, domain.MergedSchema, error) {
	var intentResult domain.Intent
	var entities []domain.Entity
	var schema domain.MergedSchema

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		intentResult, entities = intentWithFallback(gctx, o.cfg.Intent, req.Utterance, "")
		return nil
	})
	g.Go(func() error {
		var err error
		if fanOut || req.BackendID == "" {
			schema, err = o.cfg.SchemaCache.Merged(gctx)
		} else {
			var snap domain.SchemaSnapshot
			snap, err = o.cfg.SchemaCache.Get(gctx, req.BackendID)
			if err == nil {
				schema = domain.MergedSchema{req.BackendID: snap}
			}
		}
		return err
	})
	if err := g.Wait(); err != nil {
		// An unregistered backend id is a caller error, not a schema gap:
		// falling back to the other backends' merged schema here would mask
		// the unknown id until EXECUTE. Surface it from this stage instead.
		var notFound *registry.ErrNotFound
		if errors.As(err, &notFound) {
			return intentResult, entities, nil, err
		}
		// The requested backend's own schema could not be read: fall back to
		// the merged, cross-backend view before giving up entirely.
		o.cfg.Logger.Info("orchestration: schema unavailable, trying merged schema", zap.Error(err))
		merged, mergeErr := o.cfg.SchemaCache.Merged(ctx)
		if mergeErr != nil || len(merged) == 0 {
			return intentResult, entities, nil, err
		}
		schema = merged
	}

	if req.BackendID != "" {
		if snap, ok := schema[req.BackendID]; ok && snap.Empty() {
			merged, mergeErr := o.cfg.SchemaCache.Merged(ctx)
			if mergeErr == nil && len(merged) > 0 {
				schema = merged
			}
		}
	}

	return intentResult, entities, schema, nil
}

func intentWithFallback(ctx context.Context, x *intent.Extractor, utterance, schemaContext string) (domain.Intent, []domain.Entity) {
	if x == nil {
		return domain.Intent{Name: domain.IntentQueryData, Confidence: 0.6, Description: "no extractor configured"}, nil
	}
	in, err := x.ClassifyIntent(ctx, utterance, schemaContext)
	if err != nil {
		in = domain.Intent{Name: domain.IntentQueryData, Confidence: 0.5, Description: "intent extraction failed"}
	}
	entities := x.ExtractEntities(ctx, utterance, schemaContext)
	return in, entities
}

func (o *Orchestrator) runSingle(progress types.ProgressCallback, ctx context.Context, requestID string, req Request, artifact domain.SqlArtifact, intentResult domain.Intent, entities []domain.Entity) domain.Envelope {
	result, err := o.cfg.Executor.Execute(ctx, artifact.BackendID, artifact.Statement, artifact.Parameters, executor.Options{
		Timeout: req.Timeout, MaxRows: req.MaxRows,
	})
	if err != nil {
		return o.degraded(progress, requestID, req, artifact, &intentResult, entities, err, "execute")
	}

	o.emit(progress, requestID, types.StageVisualize, "choosing chart")
	chart := o.cfg.Viz.Choose(result, req.Utterance)

	o.emit(progress, requestID, types.StageDone, "complete")
	return domain.Envelope{
		Status:        domain.StatusSuccess,
		SQL:           artifact.Statement,
		Parameters:    artifact.Parameters,
		Result:        &result,
		Visualization: &chart,
		Intent:        &intentResult,
		Entities:      entities,
	}
}

// runRouteSQL executes the routed SQL path: synthesis plus execution only,
// with no visualization stage. Used for every route-mode intent except
// DATA_VISUALIZATION (SCHEMA_INFO is short-circuited before SYNTHESIZE).
func (o *Orchestrator) runRouteSQL(progress types.ProgressCallback, ctx context.Context, requestID string, req Request, artifact domain.SqlArtifact, intentResult domain.Intent, entities []domain.Entity) domain.Envelope {
	result, err := o.cfg.Executor.Execute(ctx, artifact.BackendID, artifact.Statement, artifact.Parameters, executor.Options{
		Timeout: req.Timeout, MaxRows: req.MaxRows,
	})
	if err != nil {
		return o.degraded(progress, requestID, req, artifact, &intentResult, entities, err, "execute")
	}

	o.emit(progress, requestID, types.StageDone, "complete")
	return domain.Envelope{
		Status:     domain.StatusSuccess,
		SQL:        artifact.Statement,
		Parameters: artifact.Parameters,
		Result:     &result,
		Intent:     &intentResult,
		Entities:   entities,
	}
}

// runRouteVisualize executes the routed visualization path: synthesis,
// execution, and chart selection, returning only the chart (no SQL/result)
// since route mode returns only the selected path's output.
func (o *Orchestrator) runRouteVisualize(progress types.ProgressCallback, ctx context.Context, requestID string, req Request, artifact domain.SqlArtifact, intentResult domain.Intent, entities []domain.Entity) domain.Envelope {
	result, err := o.cfg.Executor.Execute(ctx, artifact.BackendID, artifact.Statement, artifact.Parameters, executor.Options{
		Timeout: req.Timeout, MaxRows: req.MaxRows,
	})
	if err != nil {
		return o.degraded(progress, requestID, req, artifact, &intentResult, entities, err, "execute")
	}

	o.emit(progress, requestID, types.StageVisualize, "choosing chart")
	chart := o.cfg.Viz.Choose(result, req.Utterance)

	o.emit(progress, requestID, types.StageDone, "complete")
	return domain.Envelope{
		Status:        domain.StatusSuccess,
		Visualization: &chart,
		Intent:        &intentResult,
		Entities:      entities,
	}
}

func (o *Orchestrator) runFanOut(progress types.ProgressCallback, ctx context.Context, requestID string, req Request, artifact domain.SqlArtifact, intentResult domain.Intent, entities []domain.Entity) domain.Envelope {
	results := o.cfg.Executor.FanOut(ctx, artifact.Statement, artifact.Parameters, executor.Options{
		Timeout: req.Timeout, MaxRows: req.MaxRows,
	})

	perBackend := make(map[string]domain.BackendResult, len(results))
	var errs []domain.ErrorDetail
	var sample *domain.ResultSet
	for _, r := range results {
		if r.Err != nil {
			detail := domain.ErrorDetail{Code: classifyFanOutError(r.Err), Message: r.Err.Error(), Stage: "execute"}
			perBackend[r.BackendID] = domain.BackendResult{Error: &detail}
			errs = append(errs, detail)
			continue
		}
		perBackend[r.BackendID] = domain.BackendResult{Result: r.Result}
		if sample == nil {
			sample = r.Result
		}
	}

	var chart *domain.ChartSpec
	if sample != nil {
		c := o.cfg.Viz.Choose(*sample, req.Utterance)
		chart = &c
	}

	o.emit(progress, requestID, types.StageDone, "complete")
	return domain.Envelope{
		Status:        domain.StatusSuccess,
		SQL:           artifact.Statement,
		Parameters:    artifact.Parameters,
		Result:        sample,
		Results:       perBackend,
		Visualization: chart,
		Intent:        &intentResult,
		Entities:      entities,
		Errors:        errs,
	}
}

func classifyFanOutError(err error) string {
	if execErr, ok := err.(*domain.ExecutionError); ok {
		return "ExecutionError." + string(execErr.Kind)
	}
	if _, ok := err.(*domain.SafetyRejection); ok {
		return "SafetyRejection"
	}
	return "Error"
}

// degraded absorbs a classified failure into the uniform envelope instead of
// propagating it, per the pipeline's never-throw-to-the-caller contract.
func (o *Orchestrator) degraded(progress types.ProgressCallback, requestID string, req Request, artifact domain.SqlArtifact, in *domain.Intent, entities []domain.Entity, err error, stage string) domain.Envelope {
	o.emit(progress, requestID, types.StageDegraded, fmt.Sprintf("degraded at %s: %v", stage, err))

	status := domain.StatusDegraded
	if stage == "schema" {
		status = domain.StatusError
	}

	note := ""
	switch {
	case artifact.Statement == synth.SentinelSQL:
		note = "could not determine a specific table; specify one to run a real query"
	case stage == "execute":
		if c := o.cfg.Guardrails.HandleError(context.Background(), requestID, artifact.Statement, errCode(err), err.Error()); c != nil {
			note = c.Explanation
			if c.CorrectedSQL != "" {
				note = fmt.Sprintf("%s (suggested: %s)", note, c.CorrectedSQL)
			}
		}
	}

	return domain.Envelope{
		Status:     status,
		SQL:        artifact.Statement,
		Parameters: artifact.Parameters,
		Intent:     in,
		Entities:   entities,
		Note:       note,
		Errors:     []domain.ErrorDetail{{Code: errCode(err), Message: err.Error(), Stage: stage}},
	}
}

func errCode(err error) string {
	switch err.(type) {
	case *domain.IntentError:
		return "IntentError"
	case *domain.SchemaError:
		return "SchemaError"
	case *domain.SqlGenerationError:
		return "SqlGenerationError"
	case *domain.SafetyRejection:
		return "SafetyRejection"
	case *domain.ExecutionError:
		return "ExecutionError"
	case *domain.UpstreamError:
		return "UpstreamError"
	default:
		return "Error"
	}
}

func (o *Orchestrator) emit(progress types.ProgressCallback, requestID string, stage types.Stage, message string) {
	if progress == nil {
		return
	}
	progress(types.ProgressEvent{
		RequestID: requestID,
		Stage:     stage,
		Message:   message,
		Timestamp: time.Now(),
	})
}

func mentionsAllBackends(utterance string) bool {
	lower := strings.ToLower(utterance)
	for _, p := range crossBackendPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func dialectFor(reg *registry.Registry, backendID string) domain.Dialect {
	if backendID == "" {
		return domain.DialectUnknown
	}
	cfg, err := backendConfig(reg, backendID)
	if err != nil {
		return domain.DialectUnknown
	}
	return cfg.Dialect
}

func backendConfig(reg *registry.Registry, backendID string) (domain.Backend, error) {
	for _, b := range reg.List(true) {
		if b.ID == backendID {
			return b, nil
		}
	}
	return domain.Backend{}, fmt.Errorf("orchestration: backend %q not found", backendID)
}
