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

// Package registry is the database registry: the single place that maps a
// backend id to a live connection. It loads domain.Backend records at
// startup, opens one sqlbackend.Backend per enabled entry, and hands out
// fabric.ExecutionBackend handles to the rest of the pipeline. No other
// package opens a database/sql connection.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/querymesh/loomquery/pkg/domain"
	"github.com/querymesh/loomquery/pkg/fabric"
	"github.com/querymesh/loomquery/pkg/observability"
	"github.com/querymesh/loomquery/pkg/sqlbackend"
)

// ErrNotFound is returned by Get, Backend and Select when no backend is registered under
// the requested id.
type ErrNotFound struct{ ID string }

func (e *ErrNotFound) Error() string { return fmt.Sprintf("registry: backend %q not found", e.ID) }

// Registry holds one connected backend per configured, enabled domain.Backend.
// Built once at startup and treated as read-only for the life of the process.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]*sqlbackend.Backend
	order    []string
	logger   *zap.Logger
	tracer   observability.Tracer
}

// New connects every enabled entry in cfgs and returns the assembled
// registry. A connection failure for one backend does not prevent the
// others from registering; the failure is logged and the backend is
// skipped, matching the Orchestrator's degraded-path philosophy of never
// failing a whole process over one bad connection string. tracer may be
// nil, in which case handles returned by Get carry a no-op tracer.
func New(ctx context.Context, cfgs []domain.Backend, logger *zap.Logger, tracer observability.Tracer) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	r := &Registry{backends: make(map[string]*sqlbackend.Backend), logger: logger, tracer: tracer}

	seen := make(map[string]bool, len(cfgs))
	for _, cfg := range cfgs {
		if seen[cfg.ID] {
			return nil, fmt.Errorf("registry: duplicate backend id %q", cfg.ID)
		}
		seen[cfg.ID] = true

		if !cfg.Enabled {
			continue
		}
		b, err := sqlbackend.NewBackend(ctx, cfg)
		if err != nil {
			logger.Warn("registry: backend unavailable at startup",
				zap.String("backend_id", cfg.ID), zap.Error(err))
			continue
		}
		r.backends[cfg.ID] = b
		r.order = append(r.order, cfg.ID)
	}
	sort.Strings(r.order)
	return r, nil
}

// List returns the configuration of every registered backend, in id order.
// includeDisabled has no effect today since New only registers enabled
// backends, but is accepted to match the registry's documented contract for
// callers that may later want to surface disabled entries for diagnostics.
func (r *Registry) List(includeDisabled bool) []domain.Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Backend, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.backends[id].Config())
	}
	return out
}

// Get returns the live backend handle for id, wrapped with tracing
// instrumentation, or ErrNotFound.
func (r *Registry) Get(id string) (fabric.ExecutionBackend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[id]
	if !ok {
		return nil, &ErrNotFound{ID: id}
	}
	return fabric.NewInstrumentedBackend(b, r.tracer), nil
}

// Backend returns the sqlbackend.Backend directly, for callers (schema cache,
// executor introspection) that need dialect-specific capabilities beyond the
// fabric.ExecutionBackend interface.
func (r *Registry) Backend(id string) (*sqlbackend.Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[id]
	if !ok {
		return nil, &ErrNotFound{ID: id}
	}
	return b, nil
}

// Select validates that id refers to a registered backend without returning
// it; the caller carries id forward in its own request-scoped state rather
// than the registry tracking a "current" backend globally.
func (r *Registry) Select(id string) error {
	_, err := r.Get(id)
	return err
}

// IDs returns every registered backend id in stable order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Close shuts down every connection pool. Errors are collected but do not
// stop the sweep across backends.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, id := range r.order {
		if err := r.backends[id].Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("registry: close %s: %w", id, err)
		}
	}
	return firstErr
}
