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
package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/querymesh/loomquery/pkg/domain"
	"github.com/querymesh/loomquery/pkg/fabric"
	"github.com/querymesh/loomquery/pkg/resultcache"
)

// fakeBackend implements fabric.ExecutionBackend with a scripted ExecuteSQL.
type fakeBackend struct {
	id    string
	calls int32
	fn    func(call int) (*fabric.QueryResult, error)
}

func (b *fakeBackend) Name() string { return b.id }
func (b *fakeBackend) ExecuteQuery(ctx context.Context, query string) (*fabric.QueryResult, error) {
	return nil, errors.New("not implemented")
}
func (b *fakeBackend) ExecuteSQL(ctx context.Context, sql string, params map[string]interface{}, opts fabric.ExecOptions) (*fabric.QueryResult, error) {
	n := int(atomic.AddInt32(&b.calls, 1)) - 1
	return b.fn(n)
}
func (b *fakeBackend) GetSchema(ctx context.Context, resource string) (*fabric.Schema, error) {
	return nil, errors.New("not implemented")
}
func (b *fakeBackend) ListResources(ctx context.Context, filters map[string]string) ([]fabric.Resource, error) {
	return nil, nil
}
func (b *fakeBackend) GetMetadata(ctx context.Context, resource string) (map[string]interface{}, error) {
	return nil, nil
}
func (b *fakeBackend) Ping(ctx context.Context) error           { return nil }
func (b *fakeBackend) Capabilities() *fabric.Capabilities        { return &fabric.Capabilities{} }
func (b *fakeBackend) ExecuteCustomOperation(ctx context.Context, op string, params map[string]interface{}) (interface{}, error) {
	return nil, errors.New("not implemented")
}
func (b *fakeBackend) Close() error { return nil }

func sampleQueryResult() *fabric.QueryResult {
	return &fabric.QueryResult{
		Columns: []fabric.Column{{Name: "id"}},
		Rows:    []map[string]interface{}{{"id": 1}},
	}
}

type fakeSource struct {
	backends map[string]fabric.ExecutionBackend
	configs  []domain.Backend
}

func (s *fakeSource) Get(id string) (fabric.ExecutionBackend, error) {
	b, ok := s.backends[id]
	if !ok {
		return nil, errors.New("backend not registered")
	}
	return b, nil
}

func (s *fakeSource) List(includeDisabled bool) []domain.Backend { return s.configs }

func TestExecuteHappyPathPopulatesCache(t *testing.T) {
	backend := &fakeBackend{id: "default", fn: func(call int) (*fabric.QueryResult, error) {
		return sampleQueryResult(), nil
	}}
	src := &fakeSource{backends: map[string]fabric.ExecutionBackend{"default": backend}}
	cache := resultcache.New(0)
	e := New(src, cache, nil)

	rs, err := e.Execute(context.Background(), "default", "SELECT * FROM orders", nil, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rs.RowCount != 1 {
		t.Fatalf("unexpected result: %+v", rs)
	}

	if _, ok := cache.Get("default", "SELECT * FROM orders", nil); !ok {
		t.Error("expected the SELECT result to be cached")
	}
	if atomic.LoadInt32(&backend.calls) != 1 {
		t.Errorf("expected exactly one backend call, got %d", backend.calls)
	}
}

func TestExecuteServesFromCacheWithoutCallingBackend(t *testing.T) {
	backend := &fakeBackend{id: "default", fn: func(call int) (*fabric.QueryResult, error) {
		return sampleQueryResult(), nil
	}}
	src := &fakeSource{backends: map[string]fabric.ExecutionBackend{"default": backend}}
	e := New(src, resultcache.New(0), nil)

	ctx := context.Background()
	first, err := e.Execute(ctx, "default", "SELECT 1", nil, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.CacheHit {
		t.Error("first execution must not report a cache hit")
	}
	second, err := e.Execute(ctx, "default", "SELECT 1", nil, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.CacheHit {
		t.Error("second execution should report cache_hit=true")
	}
	if atomic.LoadInt32(&backend.calls) != 1 {
		t.Errorf("expected the second call to be served from cache, got %d backend calls", backend.calls)
	}
}

func TestExecuteBypassesCacheForNonSelect(t *testing.T) {
	backend := &fakeBackend{id: "default", fn: func(call int) (*fabric.QueryResult, error) {
		return sampleQueryResult(), nil
	}}
	src := &fakeSource{backends: map[string]fabric.ExecutionBackend{"default": backend}}
	e := New(src, resultcache.New(0), nil)

	ctx := context.Background()
	if _, err := e.Execute(ctx, "default", "DELETE FROM orders", nil, Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := e.Execute(ctx, "default", "DELETE FROM orders", nil, Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&backend.calls) != 2 {
		t.Errorf("expected every non-SELECT call to hit the backend, got %d", backend.calls)
	}
}

func TestExecuteRetriesConnectionErrorThenSucceeds(t *testing.T) {
	backend := &fakeBackend{id: "default", fn: func(call int) (*fabric.QueryResult, error) {
		if call == 0 {
			return nil, errors.New("connection refused")
		}
		return sampleQueryResult(), nil
	}}
	src := &fakeSource{backends: map[string]fabric.ExecutionBackend{"default": backend}}
	e := New(src, resultcache.New(0), nil)

	rs, err := e.Execute(context.Background(), "default", "SELECT 1", nil, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rs.Stats.Retries != 1 {
		t.Errorf("expected Stats.Retries=1, got %d", rs.Stats.Retries)
	}
	if atomic.LoadInt32(&backend.calls) != 2 {
		t.Errorf("expected 2 backend calls (1 failure + 1 success), got %d", backend.calls)
	}
}

func TestExecuteDoesNotRetrySyntaxError(t *testing.T) {
	backend := &fakeBackend{id: "default", fn: func(call int) (*fabric.QueryResult, error) {
		return nil, errors.New("syntax error near SELCT")
	}}
	src := &fakeSource{backends: map[string]fabric.ExecutionBackend{"default": backend}}
	e := New(src, resultcache.New(0), nil)

	_, err := e.Execute(context.Background(), "default", "SELCT 1", nil, Options{})
	if err == nil {
		t.Fatal("expected an error")
	}
	if atomic.LoadInt32(&backend.calls) != 1 {
		t.Errorf("a non-retryable error must not be retried, got %d calls", backend.calls)
	}
	var execErr *domain.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *domain.ExecutionError, got %T: %v", err, err)
	}
	if execErr.Kind != domain.ExecSyntax {
		t.Errorf("expected ExecSyntax, got %s", execErr.Kind)
	}
}

func TestExecuteUnknownBackendReturnsNotFound(t *testing.T) {
	src := &fakeSource{backends: map[string]fabric.ExecutionBackend{}}
	e := New(src, resultcache.New(0), nil)

	_, err := e.Execute(context.Background(), "missing", "SELECT 1", nil, Options{})
	var execErr *domain.ExecutionError
	if !errors.As(err, &execErr) || execErr.Kind != domain.ExecNotFound {
		t.Fatalf("expected ExecNotFound, got %v", err)
	}
}

func TestFanOutReportsPartialFailureWithoutOverallError(t *testing.T) {
	good := &fakeBackend{id: "db1", fn: func(call int) (*fabric.QueryResult, error) { return sampleQueryResult(), nil }}
	bad := &fakeBackend{id: "db2", fn: func(call int) (*fabric.QueryResult, error) { return nil, errors.New("syntax error") }}
	src := &fakeSource{
		backends: map[string]fabric.ExecutionBackend{"db1": good, "db2": bad},
		configs:  []domain.Backend{{ID: "db1"}, {ID: "db2"}},
	}
	e := New(src, resultcache.New(0), nil)

	results := e.FanOut(context.Background(), "SELECT 1", nil, Options{})
	if len(results) != 2 {
		t.Fatalf("expected a result per backend, got %d", len(results))
	}
	var sawGood, sawBad bool
	for _, r := range results {
		switch r.BackendID {
		case "db1":
			sawGood = r.Result != nil && r.Err == nil
		case "db2":
			sawBad = r.Err != nil && r.Result == nil
		}
	}
	if !sawGood {
		t.Error("expected db1 to succeed")
	}
	if !sawBad {
		t.Error("expected db2 to report an inline error")
	}
}

func TestExecuteRejectsWriteAgainstReadOnlyBackend(t *testing.T) {
	ro := &fakeBackend{id: "db1", fn: func(call int) (*fabric.QueryResult, error) { return sampleQueryResult(), nil }}
	src := &fakeSource{
		backends: map[string]fabric.ExecutionBackend{"db1": ro},
		configs:  []domain.Backend{{ID: "db1", ReadOnly: true}},
	}
	e := New(src, resultcache.New(0), nil)

	_, err := e.Execute(context.Background(), "db1", "DELETE FROM orders", nil, Options{})
	if err == nil {
		t.Fatal("expected a read_only_backend rejection")
	}
	var rejection *domain.SafetyRejection
	if !errors.As(err, &rejection) || rejection.Reason != "read_only_backend" {
		t.Fatalf("expected SafetyRejection{read_only_backend}, got %v", err)
	}
	if atomic.LoadInt32(&ro.calls) != 0 {
		t.Error("read-only backend should never have been called for a write statement, even bypassing the gate")
	}
}

func TestExecuteAllowsSelectAgainstReadOnlyBackend(t *testing.T) {
	ro := &fakeBackend{id: "db1", fn: func(call int) (*fabric.QueryResult, error) { return sampleQueryResult(), nil }}
	src := &fakeSource{
		backends: map[string]fabric.ExecutionBackend{"db1": ro},
		configs:  []domain.Backend{{ID: "db1", ReadOnly: true}},
	}
	e := New(src, resultcache.New(0), nil)

	if _, err := e.Execute(context.Background(), "db1", "SELECT * FROM orders", nil, Options{}); err != nil {
		t.Fatalf("expected SELECT against a read-only backend to succeed, got %v", err)
	}
}

func TestFanOutSkipsReadOnlyBackendForWriteStatement(t *testing.T) {
	ro := &fakeBackend{id: "db1", fn: func(call int) (*fabric.QueryResult, error) { return sampleQueryResult(), nil }}
	src := &fakeSource{
		backends: map[string]fabric.ExecutionBackend{"db1": ro},
		configs:  []domain.Backend{{ID: "db1", ReadOnly: true}},
	}
	e := New(src, resultcache.New(0), nil)

	results := e.FanOut(context.Background(), "DELETE FROM orders", nil, Options{})
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	if results[0].Err == nil {
		t.Fatal("expected a read_only_backend rejection")
	}
	var rejection *domain.SafetyRejection
	if !errors.As(results[0].Err, &rejection) || rejection.Reason != "read_only_backend" {
		t.Fatalf("expected SafetyRejection{read_only_backend}, got %v", results[0].Err)
	}
	if atomic.LoadInt32(&ro.calls) != 0 {
		t.Error("read-only backend should never have been called for a write statement")
	}
}

func TestFanOutAllowsReadOnlyBackendForSelect(t *testing.T) {
	ro := &fakeBackend{id: "db1", fn: func(call int) (*fabric.QueryResult, error) { return sampleQueryResult(), nil }}
	src := &fakeSource{
		backends: map[string]fabric.ExecutionBackend{"db1": ro},
		configs:  []domain.Backend{{ID: "db1", ReadOnly: true}},
	}
	e := New(src, resultcache.New(0), nil)

	results := e.FanOut(context.Background(), "SELECT * FROM orders", nil, Options{})
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("expected read-only backend to run a SELECT cleanly, got %+v", results)
	}
}

func TestFirstVerbUppercasesAndSkipsLeadingParens(t *testing.T) {
	cases := map[string]string{
		"  select 1":        "SELECT",
		"(SELECT 1)":        "SELECT",
		"\nwith x as (1)":   "WITH",
		"DELETE FROM orders": "DELETE",
	}
	for sql, want := range cases {
		if got := firstVerb(sql); got != want {
			t.Errorf("firstVerb(%q) = %q, want %q", sql, got, want)
		}
	}
}
