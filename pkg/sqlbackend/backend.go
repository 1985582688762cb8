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
package sqlbackend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/querymesh/loomquery/pkg/domain"
	"github.com/querymesh/loomquery/pkg/fabric"
)

// Backend adapts a single configured domain.Backend to fabric.ExecutionBackend
// over database/sql. It is dialect-agnostic: driverName, placeholder
// rewriting and introspection queries are the only places that branch on
// domain.Dialect.
type Backend struct {
	cfg domain.Backend
	db  *sql.DB
}

// NewBackend opens a connection pool for cfg and verifies connectivity.
func NewBackend(ctx context.Context, cfg domain.Backend) (*Backend, error) {
	driver, err := driverName(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, cfg.ConnectionDescriptor)
	if err != nil {
		return nil, fmt.Errorf("sqlbackend: open %s: %w", cfg.ID, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlbackend: ping %s: %w", cfg.ID, err)
	}
	return &Backend{cfg: cfg, db: db}, nil
}

// Config returns the backend's static configuration.
func (b *Backend) Config() domain.Backend { return b.cfg }

// DB exposes the underlying database/sql handle for storage-level callers
// (the metadata-table migrators) that need raw access beyond what
// fabric.ExecutionBackend offers. The handle is still owned by this Backend;
// callers must not Close it.
func (b *Backend) DB() *sql.DB { return b.db }

func (b *Backend) Name() string { return b.cfg.ID }

func (b *Backend) Ping(ctx context.Context) error { return b.db.PingContext(ctx) }

func (b *Backend) Close() error { return b.db.Close() }

func (b *Backend) Capabilities() *fabric.Capabilities {
	return &fabric.Capabilities{
		SupportsTransactions: true,
		SupportsConcurrency:  true,
		SupportsStreaming:    false,
		MaxConcurrentOps:     10,
		SupportedOperations:  []string{"execute_sql", "get_schema", "list_resources"},
		Features: map[string]bool{
			"read_only": b.cfg.ReadOnly,
		},
	}
}

// ExecuteQuery runs query with no bound parameters and the backend's default
// limits. It exists to satisfy fabric.ExecutionBackend for callers that don't
// need parameter binding; the query pipeline always goes through ExecuteSQL.
func (b *Backend) ExecuteQuery(ctx context.Context, query string) (*fabric.QueryResult, error) {
	return b.ExecuteSQL(ctx, query, nil, fabric.ExecOptions{})
}

// ExecuteSQL binds params into sqlText, runs it inside a transaction that is
// rolled back on any error, and returns at most opts.MaxRows rows (1000 when
// unset), reading one row past that to detect truncation without an extra
// COUNT query.
func (b *Backend) ExecuteSQL(ctx context.Context, sqlText string, params map[string]interface{}, opts fabric.ExecOptions) (*fabric.QueryResult, error) {
	verb := firstVerb(sqlText)
	if !b.cfg.AllowsWrite(verb) {
		return nil, &domain.ExecutionError{
			BackendID: b.cfg.ID,
			Kind:      domain.ExecPermission,
			Cause:     fmt.Errorf("backend %q is read-only; statement starts with %q", b.cfg.ID, verb),
		}
	}

	bound, args, err := bindNamedParams(b.cfg.Dialect, sqlText, params)
	if err != nil {
		return nil, &domain.ExecutionError{BackendID: b.cfg.ID, Kind: domain.ExecSyntax, Cause: err}
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, b.classify(err)
	}

	result, err := b.runStatement(ctx, tx, bound, args, opts.MaxRows, verb)
	if err != nil {
		tx.Rollback()
		return nil, b.classify(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, b.classify(err)
	}

	result.ExecutionStats.DurationMs = time.Since(start).Milliseconds()
	return result, nil
}

func (b *Backend) runStatement(ctx context.Context, tx *sql.Tx, sqlText string, args []interface{}, maxRows int, verb string) (*fabric.QueryResult, error) {
	if verb != "SELECT" && verb != "WITH" {
		res, err := tx.ExecContext(ctx, sqlText, args...)
		if err != nil {
			return nil, err
		}
		affected, _ := res.RowsAffected()
		return &fabric.QueryResult{
			Type:           "rows_affected",
			RowCount:       int(affected),
			ExecutionStats: fabric.ExecutionStats{RowsAffected: affected},
		}, nil
	}

	rows, err := tx.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	colNames, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	columns := make([]fabric.Column, len(colNames))
	for i, c := range colNames {
		nullable, _ := c.Nullable()
		columns[i] = fabric.Column{Name: c.Name(), Type: c.DatabaseTypeName(), Nullable: nullable}
	}

	limit := maxRows
	if limit <= 0 {
		limit = 1000
	}

	var out []map[string]interface{}
	truncated := false
	for rows.Next() {
		if len(out) >= limit {
			truncated = true
			break
		}
		scanned := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range scanned {
			ptrs[i] = &scanned[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(columns))
		for i, c := range columns {
			row[c.Name] = normalizeValue(scanned[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &fabric.QueryResult{
		Type:     "rows",
		Rows:     out,
		Columns:  columns,
		RowCount: len(out),
		Metadata: map[string]interface{}{"truncated": truncated},
	}, nil
}

// classify wraps err as a domain.ExecutionError using domain.ClassifyError,
// so the executor's retry policy doesn't need to know about database/sql or
// driver-specific error types.
func (b *Backend) classify(err error) error {
	if err == nil {
		return nil
	}
	return &domain.ExecutionError{BackendID: b.cfg.ID, Kind: domain.ClassifyError(err), Cause: err}
}

// firstVerb extracts the first SQL keyword after leading whitespace,
// uppercased for comparison against domain.Backend.AllowsWrite. Leading
// comments are not skipped.
func firstVerb(sqlText string) string {
	s := strings.TrimSpace(sqlText)
	for i, r := range s {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' || r == '(' {
			return strings.ToUpper(s[:i])
		}
	}
	return strings.ToUpper(s)
}

// normalizeValue maps driver-native scan results to the closed set of Go
// types the response encoder understands.
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []byte:
		return string(val)
	default:
		return val
	}
}

func (b *Backend) GetSchema(ctx context.Context, resource string) (*fabric.Schema, error) {
	snapshot, err := b.Introspect(ctx)
	if err != nil {
		return nil, err
	}
	table, ok := snapshot.Table(resource)
	if !ok {
		return nil, fmt.Errorf("sqlbackend: resource %q not found on backend %q", resource, b.cfg.ID)
	}
	fields := make([]fabric.Field, len(table.Columns))
	pk := make(map[string]bool, len(table.PrimaryKey))
	for _, c := range table.PrimaryKey {
		pk[c] = true
	}
	for i, c := range table.Columns {
		fields[i] = fabric.Field{
			Name:       c.Name,
			Type:       c.DeclaredType,
			Nullable:   c.Nullable,
			PrimaryKey: pk[c.Name],
		}
	}
	return &fabric.Schema{Name: table.Name, Type: "table", Fields: fields}, nil
}

func (b *Backend) ListResources(ctx context.Context, filters map[string]string) ([]fabric.Resource, error) {
	snapshot, err := b.Introspect(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]fabric.Resource, len(snapshot.Tables))
	for i, t := range snapshot.Tables {
		out[i] = fabric.Resource{Name: t.Name, Type: "table"}
	}
	return out, nil
}

func (b *Backend) GetMetadata(ctx context.Context, resource string) (map[string]interface{}, error) {
	return map[string]interface{}{"dialect": string(b.cfg.Dialect), "read_only": b.cfg.ReadOnly}, nil
}

func (b *Backend) ExecuteCustomOperation(ctx context.Context, op string, params map[string]interface{}) (interface{}, error) {
	return nil, fmt.Errorf("sqlbackend: custom operation %q not supported", op)
}
