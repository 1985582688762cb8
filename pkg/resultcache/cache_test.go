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
package resultcache

import (
	"testing"
	"time"

	"github.com/querymesh/loomquery/pkg/domain"
)

func TestKeyStableUnderWhitespaceAndSemicolonNormalization(t *testing.T) {
	variants := []string{
		"SELECT 1",
		"select 1 ;",
		"SELECT  1",
		"  SELECT 1  ",
		"SELECT 1;",
	}
	want := Key("default", variants[0], nil)
	for _, v := range variants[1:] {
		if got := Key("default", v, nil); got != want {
			t.Errorf("Key(%q) = %s, want %s (same as %q)", v, got, want, variants[0])
		}
	}
}

func TestKeyPreservesQuotedCase(t *testing.T) {
	a := Key("default", `SELECT * FROM "Orders"`, nil)
	b := Key("default", `SELECT * FROM "orders"`, nil)
	if a == b {
		t.Error("keys for differently-cased quoted identifiers should differ")
	}
}

func TestKeyDiffersByBackendAndParams(t *testing.T) {
	base := Key("db1", "SELECT 1", nil)
	otherBackend := Key("db2", "SELECT 1", nil)
	otherParams := Key("db1", "SELECT 1", map[string]any{"a": 1})
	if base == otherBackend {
		t.Error("keys should differ across backends")
	}
	if base == otherParams {
		t.Error("keys should differ when params differ")
	}
}

func TestKeyCanonicalizesParamOrder(t *testing.T) {
	a := Key("db1", "SELECT 1", map[string]any{"a": 1, "b": 2})
	b := Key("db1", "SELECT 1", map[string]any{"b": 2, "a": 1})
	if a != b {
		t.Error("param key order should not affect the cache key")
	}
}

func TestGetPutRoundTrip(t *testing.T) {
	c := New(time.Minute)
	rs := domain.ResultSet{Columns: []string{"n"}, Rows: [][]any{{1}}, RowCount: 1}

	if _, ok := c.Get("default", "SELECT 1", nil); ok {
		t.Fatal("expected miss before Put")
	}
	c.Put("default", "SELECT 1", nil, rs)
	got, ok := c.Get("default", "SELECT 1", nil)
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if got.RowCount != 1 {
		t.Errorf("unexpected cached result: %+v", got)
	}
}

func TestGetExpiresAfterTTL(t *testing.T) {
	c := New(time.Millisecond)
	c.Put("default", "SELECT 1", nil, domain.ResultSet{RowCount: 1})
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("default", "SELECT 1", nil); ok {
		t.Fatal("expected entry to have expired")
	}
}

func TestInvalidateSweepsByBackend(t *testing.T) {
	c := New(time.Minute)
	c.Put("db1", "SELECT 1", nil, domain.ResultSet{RowCount: 1})
	c.Put("db2", "SELECT 1", nil, domain.ResultSet{RowCount: 1})

	c.Invalidate("db1")

	if _, ok := c.Get("db1", "SELECT 1", nil); ok {
		t.Error("db1 entry should have been invalidated")
	}
	if _, ok := c.Get("db2", "SELECT 1", nil); !ok {
		t.Error("db2 entry should be unaffected by db1's invalidation")
	}
}

func TestSweepRemovesOnlyStaleEntries(t *testing.T) {
	c := New(time.Hour)
	c.Put("db1", "SELECT 1", nil, domain.ResultSet{RowCount: 1})

	stale := New(time.Millisecond)
	stale.Put("db1", "SELECT 2", nil, domain.ResultSet{RowCount: 1})
	time.Sleep(5 * time.Millisecond)

	if n := c.Sweep(); n != 0 {
		t.Errorf("fresh cache should sweep 0 entries, got %d", n)
	}
	if n := stale.Sweep(); n != 1 {
		t.Errorf("expected 1 stale entry removed, got %d", n)
	}
}

func TestBypassNonSelect(t *testing.T) {
	cases := map[string]bool{
		"SELECT * FROM orders":             false,
		"WITH x AS (SELECT 1) SELECT * FROM x": false,
		"  select 1":                       false,
		"DELETE FROM orders":                true,
		"UPDATE orders SET x = 1":           true,
		"INSERT INTO orders VALUES (1)":     true,
	}
	for sql, want := range cases {
		if got := Bypass(sql); got != want {
			t.Errorf("Bypass(%q) = %v, want %v", sql, got, want)
		}
	}
}
