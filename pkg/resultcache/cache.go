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

// Package resultcache is a content-addressed cache of query results, keyed
// by SHA-256(backend_id || 0x1f || normalized_sql || 0x1f || canonical
// params). It is bypassed entirely for non-SELECT statements: caching a
// mutation's result would mask side effects on replay.
package resultcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/querymesh/loomquery/pkg/domain"
)

// DefaultTTL is used when the cache is constructed without an override.
const DefaultTTL = 5 * time.Minute

var whitespaceRun = regexp.MustCompile(`\s+`)

// Key computes the content-addressed cache key for a statement. It is
// exported so callers (and tests asserting the cache-key stability
// property) can compute it without executing anything.
func Key(backendID, sql string, params map[string]any) string {
	normalized := normalizeSQL(sql)
	canonical := canonicalParams(params)

	h := sha256.New()
	h.Write([]byte(backendID))
	h.Write([]byte{0x1f})
	h.Write([]byte(normalized))
	h.Write([]byte{0x1f})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeSQL collapses whitespace runs, strips trailing semicolons and
// lower-cases everything outside quoted identifiers and string literals,
// whose case is preserved.
func normalizeSQL(sql string) string {
	s := strings.TrimSpace(sql)
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimRight(s, "; ")
	var b strings.Builder
	var quote rune
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'' || r == '`':
			quote = r
		default:
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// canonicalParams marshals params with sorted keys so that {"a":1,"b":2} and
// {"b":2,"a":1} produce identical bytes. encoding/json already sorts map
// keys when marshaling, so a direct Marshal is sufficient for the
// JSON-scalar values SqlArtifact's contract guarantees. If a caller ever
// violates that contract with a non-JSON-marshalable value, fall back to a
// structural hash so two cache keys still never collide for different
// params instead of silently aliasing to "{}".
func canonicalParams(params map[string]any) []byte {
	if len(params) == 0 {
		return []byte("{}")
	}
	b, err := json.Marshal(params)
	if err == nil {
		return b
	}
	hash, hashErr := hashstructure.Hash(params, hashstructure.FormatV2, nil)
	if hashErr != nil {
		return []byte("{}")
	}
	return []byte(fmt.Sprintf("hashstructure:%d", hash))
}

// entry is an internal wrapper tracking hit counts without requiring a
// pointer receiver on domain.CacheEntry.
type entry struct {
	value     domain.ResultSet
	fetchedAt time.Time
	ttl       time.Duration
	backendID string
	hits      int64
}

func (e entry) stale(now time.Time) bool {
	if e.ttl <= 0 {
		return false
	}
	return now.Sub(e.fetchedAt) >= e.ttl
}

// Cache is an in-process, concurrency-safe result cache. A Redis- or
// memcached-backed implementation can satisfy the same Get/Put/Invalidate
// contract behind the configured cache backend URL; this is the in-process
// map used when none is configured.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
}

// New builds a Cache with the given default TTL. ttl <= 0 uses DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{entries: make(map[string]entry), ttl: ttl}
}

// Get returns the cached result for (backendID, sql, params) and whether it
// was present and fresh. Callers must check Bypass(sql) first; Get does not
// itself special-case statement verbs.
func (c *Cache) Get(backendID, sql string, params map[string]any) (domain.ResultSet, bool) {
	key := Key(backendID, sql, params)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.stale(time.Now()) {
		return domain.ResultSet{}, false
	}
	e.hits++
	c.entries[key] = e
	return e.value, true
}

// Put stores result under the key for (backendID, sql, params).
func (c *Cache) Put(backendID, sql string, params map[string]any, result domain.ResultSet) {
	key := Key(backendID, sql, params)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: result, fetchedAt: time.Now(), ttl: c.ttl, backendID: backendID}
}

// Invalidate sweeps every entry whose backend id matches.
func (c *Cache) Invalidate(backendID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if e.backendID == backendID {
			delete(c.entries, k)
		}
	}
}

// Sweep evicts every entry that has gone stale and returns the number
// removed. Get already refuses to return stale entries on read, so Sweep
// exists only to bound memory on a cache that otherwise never shrinks when
// entries are written but never re-read.
func (c *Cache) Sweep() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if e.stale(now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Bypass reports whether sql must skip the cache entirely: anything other
// than a top-level SELECT or WITH ... SELECT statement.
func Bypass(sql string) bool {
	verb := firstVerb(sql)
	return verb != "SELECT" && verb != "WITH"
}

func firstVerb(sql string) string {
	s := strings.TrimLeft(strings.TrimSpace(sql), "(")
	s = strings.TrimSpace(s)
	end := strings.IndexFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '('
	})
	if end == -1 {
		end = len(s)
	}
	return strings.ToUpper(s[:end])
}
