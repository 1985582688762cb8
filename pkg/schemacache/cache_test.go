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
package schemacache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/querymesh/loomquery/pkg/domain"
)

// fakeIntrospector returns an incrementing snapshot each call so tests can
// observe whether a refresh actually happened.
type fakeIntrospector struct {
	id       string
	calls    int32
	fail     bool
	ttl      time.Duration
	blockCh  chan struct{}
}

func (f *fakeIntrospector) Introspect(ctx context.Context) (domain.SchemaSnapshot, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if f.blockCh != nil {
		<-f.blockCh
	}
	if f.fail {
		return domain.SchemaSnapshot{}, fmt.Errorf("introspection failed")
	}
	return domain.SchemaSnapshot{
		BackendID: f.id,
		Tables:    []domain.Table{{Name: fmt.Sprintf("table_%d", n), BackendID: f.id}},
		FetchedAt: time.Now(),
		TTL:       f.ttl,
	}, nil
}

type fakeSource struct {
	mu       sync.Mutex
	backends map[string]*fakeIntrospector
	ids      []string
}

func newFakeSource(backends ...*fakeIntrospector) *fakeSource {
	s := &fakeSource{backends: map[string]*fakeIntrospector{}}
	for _, b := range backends {
		s.backends[b.id] = b
		s.ids = append(s.ids, b.id)
	}
	return s
}

func (s *fakeSource) Backend(id string) (Introspector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.backends[id]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q", id)
	}
	return b, nil
}

func (s *fakeSource) IDs() []string { return s.ids }

func TestGetRefreshesOnMiss(t *testing.T) {
	fi := &fakeIntrospector{id: "default", ttl: time.Hour}
	c := New(newFakeSource(fi), nil)

	snap, err := c.Get(context.Background(), "default")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Tables) != 1 {
		t.Fatalf("expected one table, got %d", len(snap.Tables))
	}
	if atomic.LoadInt32(&fi.calls) != 1 {
		t.Fatalf("expected exactly one introspection call, got %d", fi.calls)
	}
}

func TestGetServesFreshCacheWithoutRefresh(t *testing.T) {
	fi := &fakeIntrospector{id: "default", ttl: time.Hour}
	c := New(newFakeSource(fi), nil)

	ctx := context.Background()
	first, err := c.Get(ctx, "default")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := c.Get(ctx, "default")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&fi.calls) != 1 {
		t.Fatalf("expected a single refresh across two fresh reads, got %d", fi.calls)
	}
	if len(first.Tables) != len(second.Tables) || first.Tables[0].Name != second.Tables[0].Name {
		t.Fatalf("two reads without invalidation should return byte-identical structures: %+v vs %+v", first, second)
	}
}

func TestInvalidateForcesRefreshWithNewerTimestamp(t *testing.T) {
	fi := &fakeIntrospector{id: "default", ttl: time.Hour}
	c := New(newFakeSource(fi), nil)
	ctx := context.Background()

	first, err := c.Get(ctx, "default")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(time.Millisecond)
	c.Invalidate("default")

	second, err := c.Get(ctx, "default")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.FetchedAt.After(first.FetchedAt) {
		t.Fatalf("expected FetchedAt to advance after invalidate+refresh: %v -> %v", first.FetchedAt, second.FetchedAt)
	}
	if atomic.LoadInt32(&fi.calls) != 2 {
		t.Fatalf("expected exactly two introspections (initial + post-invalidate), got %d", fi.calls)
	}
}

func TestGetSinglesFlightsConcurrentRefresh(t *testing.T) {
	fi := &fakeIntrospector{id: "default", ttl: time.Hour, blockCh: make(chan struct{})}
	c := New(newFakeSource(fi), nil)
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := c.Get(ctx, "default"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond) // let every goroutine queue behind the in-flight call
	close(fi.blockCh)
	wg.Wait()

	if got := atomic.LoadInt32(&fi.calls); got != 1 {
		t.Fatalf("expected a burst of concurrent misses to collapse into one introspection, got %d", got)
	}
}

func TestGetServesStaleSnapshotWhenRefreshFails(t *testing.T) {
	fi := &fakeIntrospector{id: "default", ttl: time.Millisecond}
	c := New(newFakeSource(fi), nil)
	ctx := context.Background()

	fresh, err := c.Get(ctx, "default")
	if err != nil {
		t.Fatalf("unexpected error priming the cache: %v", err)
	}

	time.Sleep(5 * time.Millisecond) // let the entry go stale
	fi.fail = true

	served, err := c.Get(ctx, "default")
	if err != nil {
		t.Fatalf("expected stale snapshot to be served instead of an error, got %v", err)
	}
	if served.Tables[0].Name != fresh.Tables[0].Name {
		t.Fatalf("expected the previously cached snapshot back, got %+v", served)
	}
}

func TestGetUnknownBackendReturnsSchemaError(t *testing.T) {
	c := New(newFakeSource(), nil)
	_, err := c.Get(context.Background(), "nope")
	if err == nil {
		t.Fatal("expected an error for an unregistered backend")
	}
	var schemaErr *domain.SchemaError
	if !asSchemaError(err, &schemaErr) {
		t.Fatalf("expected *domain.SchemaError, got %T: %v", err, err)
	}
	if schemaErr.BackendID != "nope" {
		t.Errorf("expected BackendID %q, got %q", "nope", schemaErr.BackendID)
	}
}

func asSchemaError(err error, target **domain.SchemaError) bool {
	se, ok := err.(*domain.SchemaError)
	if ok {
		*target = se
	}
	return ok
}

func TestMergedAggregatesAcrossBackends(t *testing.T) {
	a := &fakeIntrospector{id: "db1", ttl: time.Hour}
	b := &fakeIntrospector{id: "db2", ttl: time.Hour}
	c := New(newFakeSource(a, b), nil)

	merged, err := c.Merged(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("expected snapshots for both backends, got %d", len(merged))
	}
	if _, ok := merged["db1"]; !ok {
		t.Error("expected db1 in merged schema")
	}
	if _, ok := merged["db2"]; !ok {
		t.Error("expected db2 in merged schema")
	}
}

func TestMergedSkipsFailingBackendButReturnsOthers(t *testing.T) {
	ok := &fakeIntrospector{id: "db1", ttl: time.Hour}
	bad := &fakeIntrospector{id: "db2", ttl: time.Hour, fail: true}
	c := New(newFakeSource(ok, bad), nil)

	merged, err := c.Merged(context.Background())
	if err != nil {
		t.Fatalf("unexpected overall error when one backend succeeds: %v", err)
	}
	if _, present := merged["db1"]; !present {
		t.Error("expected the succeeding backend's snapshot to be present")
	}
	if _, present := merged["db2"]; present {
		t.Error("did not expect the failing backend's snapshot to be present")
	}
}
