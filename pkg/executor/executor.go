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

// Package executor runs a validated SqlArtifact against one backend or fans
// it out across every enabled backend; fan-out does not filter backends by
// dialect. It is the only
// component that talks to fabric.ExecutionBackend for query execution; the
// schema cache reaches the same backends through the registry's
// introspection path instead.
package executor

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/querymesh/loomquery/pkg/domain"
	"github.com/querymesh/loomquery/pkg/fabric"
	"github.com/querymesh/loomquery/pkg/resultcache"
)

const (
	DefaultTimeout = 30 * time.Second
	DefaultMaxRows = 1000
	maxRetries     = 3
	retryBaseDelay = 200 * time.Millisecond
)

// Source resolves a backend id to its live connection and configuration.
// *registry.Registry satisfies this; tests supply fakes.
type Source interface {
	Get(id string) (fabric.ExecutionBackend, error)
	List(includeDisabled bool) []domain.Backend
}

// Executor runs statements and fills the result cache on SELECT hits.
type Executor struct {
	source   Source
	cache    *resultcache.Cache
	logger   *zap.Logger
	breakers *fabric.CircuitBreakerManager
}

func New(source Source, cache *resultcache.Cache, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		source:   source,
		cache:    cache,
		logger:   logger,
		breakers: fabric.NewCircuitBreakerManager(fabric.DefaultCircuitBreakerConfig()),
	}
}

// Options carries the per-call timeout and row cap; zero values fall back
// to DefaultTimeout/DefaultMaxRows.
type Options struct {
	Timeout time.Duration
	MaxRows int
}

func (o Options) resolved() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxRows <= 0 {
		o.MaxRows = DefaultMaxRows
	}
	return o
}

// Execute runs sql against backendID, retrying only Connection/Timeout
// classifications up to maxRetries with exponential backoff. Cache lookups
// and writes are skipped entirely for non-SELECT statements.
func (e *Executor) Execute(ctx context.Context, backendID, sql string, params map[string]any, opts Options) (domain.ResultSet, error) {
	opts = opts.resolved()

	bypass := e.cache == nil || resultcache.Bypass(sql)
	if !bypass {
		if cached, ok := e.cache.Get(backendID, sql, params); ok {
			cached.CacheHit = true
			cached.Stats.Retries = 0
			return cached, nil
		}
	}

	backend, err := e.source.Get(backendID)
	if err != nil {
		return domain.ResultSet{}, &domain.ExecutionError{BackendID: backendID, Kind: domain.ExecNotFound, Cause: err}
	}

	// Defense-in-depth: the Safety Gate already checked read-only status
	// upstream, but Execute must never itself dispatch a mutating statement
	// to a read-only backend regardless of what called it.
	if cfg, ok := e.backendConfig(backendID); ok && !cfg.AllowsWrite(firstVerb(sql)) {
		return domain.ResultSet{}, &domain.SafetyRejection{Reason: "read_only_backend", Statement: sql}
	}

	breaker := e.breakers.GetBreaker(backendID)

	var result domain.ResultSet
	var lastErr error
	attempts := 0
	for attempts < maxRetries {
		attempts++
		start := time.Now()
		var qr *fabric.QueryResult
		err := breaker.Execute(func() error {
			var execErr error
			qr, execErr = backend.ExecuteSQL(ctx, sql, params, fabric.ExecOptions{Timeout: opts.Timeout, MaxRows: opts.MaxRows})
			return execErr
		})
		if err == nil {
			result = toResultSet(backendID, qr, opts.MaxRows)
			result.Stats.Duration = time.Since(start)
			result.Stats.Retries = attempts - 1
			if !bypass {
				e.cache.Put(backendID, sql, params, result)
			}
			return result, nil
		}

		lastErr = err
		kind := domain.ClassifyError(err)
		if execErr, ok := err.(*domain.ExecutionError); ok {
			kind = execErr.Kind
		}
		if !kind.Retryable() || attempts >= maxRetries {
			break
		}
		e.logger.Info("executor: retrying after transient failure",
			zap.String("backend_id", backendID), zap.String("kind", string(kind)), zap.Int("attempt", attempts))
		select {
		case <-time.After(retryBaseDelay * time.Duration(1<<uint(attempts-1))):
		case <-ctx.Done():
			return domain.ResultSet{}, ctx.Err()
		}
	}

	if execErr, ok := lastErr.(*domain.ExecutionError); ok {
		return domain.ResultSet{}, execErr
	}
	return domain.ResultSet{}, &domain.ExecutionError{BackendID: backendID, Kind: domain.ClassifyError(lastErr), Cause: lastErr}
}

// FanOut runs sql concurrently against every enabled backend, skipping
// read-only backends for non-SELECT statements. It always returns a result
// per attempted backend; individual failures are reported inline, never as
// an overall error.
func (e *Executor) FanOut(ctx context.Context, sql string, params map[string]any, opts Options) []domain.FanOutResult {
	opts = opts.resolved()
	backends := e.source.List(false)

	results := make([]domain.FanOutResult, len(backends))
	g, gctx := errgroup.WithContext(ctx)

	for i, cfg := range backends {
		i, cfg := i, cfg
		verb := firstVerb(sql)
		if cfg.ReadOnly && verb != "SELECT" && verb != "WITH" {
			results[i] = domain.FanOutResult{BackendID: cfg.ID, Err: &domain.SafetyRejection{Reason: "read_only_backend", Statement: sql}}
			continue
		}
		g.Go(func() error {
			rs, err := e.Execute(gctx, cfg.ID, sql, params, opts)
			if err != nil {
				results[i] = domain.FanOutResult{BackendID: cfg.ID, Err: err}
				return nil // a single backend's failure never aborts the fan-out
			}
			results[i] = domain.FanOutResult{BackendID: cfg.ID, Result: &rs}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.FanOutResult, 0, len(results))
	for _, r := range results {
		if r.BackendID != "" {
			out = append(out, r)
		}
	}
	return out
}

func toResultSet(backendID string, qr *fabric.QueryResult, maxRows int) domain.ResultSet {
	columns := make([]string, len(qr.Columns))
	columnTypes := make([]string, len(qr.Columns))
	for i, c := range qr.Columns {
		columns[i] = c.Name
		columnTypes[i] = c.Type
	}

	rows := make([][]any, 0, len(qr.Rows))
	for _, row := range qr.Rows {
		r := make([]any, len(columns))
		for i, c := range columns {
			r[i] = row[c]
		}
		rows = append(rows, r)
	}

	truncated := false
	if m, ok := qr.Metadata["truncated"].(bool); ok {
		truncated = m
	}

	return domain.ResultSet{
		BackendID:   backendID,
		Columns:     columns,
		ColumnTypes: columnTypes,
		Rows:        rows,
		RowCount:    len(rows),
		Truncated:   truncated,
	}
}

// backendConfig looks up backendID's registered configuration, including
// disabled entries, so Execute can enforce ReadOnly even when called
// directly rather than through FanOut's own pre-filtered backend list.
func (e *Executor) backendConfig(backendID string) (domain.Backend, bool) {
	for _, cfg := range e.source.List(true) {
		if cfg.ID == backendID {
			return cfg, true
		}
	}
	return domain.Backend{}, false
}

func firstVerb(sql string) string {
	s := sql
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t' || s[0] == '\n' || s[0] == '(') {
		s = s[1:]
	}
	end := 0
	for end < len(s) && s[end] != ' ' && s[end] != '\t' && s[end] != '\n' && s[end] != '(' {
		end++
	}
	verb := s[:end]
	upper := make([]byte, len(verb))
	for i := 0; i < len(verb); i++ {
		c := verb[i]
		if c >= 'a' && c <= 'z' {
			c -= 32
		}
		upper[i] = c
	}
	return string(upper)
}
