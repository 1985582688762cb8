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

// Package schemacache maintains at most one domain.SchemaSnapshot per
// backend, refreshed on demand through the registry's introspection path.
// Concurrent callers requesting the same stale or missing backend collapse
// onto a single introspection via singleflight, so a burst of requests
// against a cold backend never opens more than one refresh in flight.
package schemacache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/querymesh/loomquery/pkg/domain"
)

// DefaultTTL is used when a backend does not override its schema TTL.
const DefaultTTL = time.Hour

// Introspector refreshes schema for one backend. sqlbackend.Backend
// satisfies this via its Introspect method; tests supply fakes.
type Introspector interface {
	Introspect(ctx context.Context) (domain.SchemaSnapshot, error)
}

// Source resolves a backend id to the Introspector that can refresh it.
type Source interface {
	Backend(id string) (Introspector, error)
	IDs() []string
}

// Cache holds one entry per backend behind a single-flight refresh group.
type Cache struct {
	source Source
	logger *zap.Logger

	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]domain.SchemaSnapshot
}

// New builds a Cache backed by source. source is typically the database
// registry, narrowed to the Source interface so tests can fake it without a
// live connection.
func New(source Source, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{source: source, logger: logger, entries: make(map[string]domain.SchemaSnapshot)}
}

// Get returns the cached snapshot for backendID if fresh, otherwise
// introspects and replaces the slot atomically. At most one introspection
// per backend id runs concurrently; other callers wait on and share its
// result.
func (c *Cache) Get(ctx context.Context, backendID string) (domain.SchemaSnapshot, error) {
	c.mu.RLock()
	snap, ok := c.entries[backendID]
	c.mu.RUnlock()
	if ok && !snap.Stale(time.Now()) {
		return snap, nil
	}

	v, err, _ := c.group.Do(backendID, func() (interface{}, error) {
		introspector, err := c.source.Backend(backendID)
		if err != nil {
			return nil, &domain.SchemaError{BackendID: backendID, Cause: err}
		}
		fresh, err := introspector.Introspect(ctx)
		if err != nil {
			return nil, &domain.SchemaError{BackendID: backendID, Cause: err}
		}
		if fresh.TTL <= 0 {
			fresh.TTL = DefaultTTL
		}
		c.mu.Lock()
		c.entries[backendID] = fresh
		c.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		// Serve a stale snapshot rather than fail the request outright if we
		// have one; the caller can still attempt synthesis against slightly
		// outdated schema, which is preferable to sentinel SQL.
		if ok {
			c.logger.Warn("schemacache: refresh failed, serving stale snapshot",
				zap.String("backend_id", backendID), zap.Error(err))
			return snap, nil
		}
		return domain.SchemaSnapshot{}, err
	}
	return v.(domain.SchemaSnapshot), nil
}

// Invalidate drops the cached entry for backendID so the next Get refreshes.
func (c *Cache) Invalidate(backendID string) {
	c.mu.Lock()
	delete(c.entries, backendID)
	c.mu.Unlock()
}

// Merged returns a snapshot per registered backend, refreshing any that are
// missing or stale. Each Table already carries its originating backend id
// (set by introspection), satisfying the merged-view contract without
// further tagging here.
func (c *Cache) Merged(ctx context.Context) (domain.MergedSchema, error) {
	merged := make(domain.MergedSchema)
	var firstErr error
	for _, id := range c.source.IDs() {
		snap, err := c.Get(ctx, id)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("schemacache: merge backend %s: %w", id, err)
			}
			continue
		}
		merged[id] = snap
	}
	if len(merged) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return merged, nil
}
