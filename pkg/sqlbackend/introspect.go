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
	"fmt"
	"time"

	"github.com/querymesh/loomquery/pkg/domain"
)

// Introspect builds a fresh domain.SchemaSnapshot for the backend's current
// tables, columns, primary keys and foreign keys. It is the refresh function
// the Schema Cache calls on a miss or TTL expiry; FetchedAt is stamped here,
// not by the cache, so a slow introspection doesn't understate the
// snapshot's age.
func (b *Backend) Introspect(ctx context.Context) (domain.SchemaSnapshot, error) {
	var tables []domain.Table
	var err error

	switch b.cfg.Dialect {
	case domain.DialectSQLite:
		tables, err = b.introspectSQLite(ctx)
	case domain.DialectPostgres, domain.DialectMySQL, domain.DialectMSSQL:
		tables, err = b.introspectInformationSchema(ctx)
	default:
		return domain.SchemaSnapshot{}, fmt.Errorf("sqlbackend: introspection unsupported for dialect %q", b.cfg.Dialect)
	}
	if err != nil {
		return domain.SchemaSnapshot{}, fmt.Errorf("sqlbackend: introspect %s: %w", b.cfg.ID, err)
	}

	ttl := time.Duration(b.cfg.SchemaTTLSeconds) * time.Second
	return domain.SchemaSnapshot{
		BackendID: b.cfg.ID,
		Tables:    tables,
		FetchedAt: time.Now(),
		TTL:       ttl,
	}, nil
}

// introspectInformationSchema covers Postgres, MySQL and SQL Server, all of
// which expose a standard INFORMATION_SCHEMA. schemaFilter excludes the
// information_schema, pg_catalog and sys schemas only; it does not restrict
// the scan to the connected database, so on MySQL tables of every database
// visible to the connection are included.
func (b *Backend) introspectInformationSchema(ctx context.Context) ([]domain.Table, error) {
	schemaFilter := "information_schema.tables.table_schema NOT IN ('information_schema', 'pg_catalog', 'sys')"

	rows, err := b.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT table_name, column_name, data_type, is_nullable, column_default, ordinal_position
		FROM information_schema.columns
		WHERE table_name IN (
			SELECT table_name FROM information_schema.tables
			WHERE table_type = 'BASE TABLE' AND %s
		)
		ORDER BY table_name, ordinal_position`, schemaFilter))
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	byTable := make(map[string]*domain.Table)
	var order []string
	for rows.Next() {
		var tableName, columnName, dataType, isNullable string
		var columnDefault *string
		var ordinal int
		if err := rows.Scan(&tableName, &columnName, &dataType, &isNullable, &columnDefault, &ordinal); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan column: %w", err)
		}
		t, ok := byTable[tableName]
		if !ok {
			t = &domain.Table{Name: tableName, BackendID: b.cfg.ID}
			byTable[tableName] = t
			order = append(order, tableName)
		}
		t.Columns = append(t.Columns, domain.Column{
			Name:         columnName,
			DeclaredType: dataType,
			Nullable:     isNullable == "YES",
			Default:      columnDefault,
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := b.fillPrimaryKeys(ctx, byTable); err != nil {
		return nil, err
	}
	if err := b.fillForeignKeys(ctx, byTable); err != nil {
		return nil, err
	}

	tables := make([]domain.Table, 0, len(order))
	for _, name := range order {
		tables = append(tables, *byTable[name])
	}
	return tables, nil
}

func (b *Backend) fillPrimaryKeys(ctx context.Context, byTable map[string]*domain.Table) error {
	rows, err := b.db.QueryContext(ctx, `
		SELECT tc.table_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
		ORDER BY tc.table_name, kcu.ordinal_position`)
	if err != nil {
		return fmt.Errorf("primary keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, columnName string
		if err := rows.Scan(&tableName, &columnName); err != nil {
			return fmt.Errorf("scan primary key: %w", err)
		}
		if t, ok := byTable[tableName]; ok {
			t.PrimaryKey = append(t.PrimaryKey, columnName)
		}
	}
	return rows.Err()
}

func (b *Backend) fillForeignKeys(ctx context.Context, byTable map[string]*domain.Table) error {
	rows, err := b.db.QueryContext(ctx, `
		SELECT tc.table_name, kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		ORDER BY tc.table_name, kcu.ordinal_position`)
	if err != nil {
		// MySQL lacks constraint_column_usage; fall back to key_column_usage's
		// own referenced_table_name/referenced_column_name columns.
		return b.fillForeignKeysMySQL(ctx, byTable)
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, columnName, refTable, refColumn string
		if err := rows.Scan(&tableName, &columnName, &refTable, &refColumn); err != nil {
			return fmt.Errorf("scan foreign key: %w", err)
		}
		appendForeignKey(byTable, tableName, columnName, refTable, refColumn)
	}
	return rows.Err()
}

func (b *Backend) fillForeignKeysMySQL(ctx context.Context, byTable map[string]*domain.Table) error {
	rows, err := b.db.QueryContext(ctx, `
		SELECT table_name, column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE referenced_table_name IS NOT NULL
		ORDER BY table_name, ordinal_position`)
	if err != nil {
		return fmt.Errorf("foreign keys (mysql): %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, columnName, refTable, refColumn string
		if err := rows.Scan(&tableName, &columnName, &refTable, &refColumn); err != nil {
			return fmt.Errorf("scan foreign key: %w", err)
		}
		appendForeignKey(byTable, tableName, columnName, refTable, refColumn)
	}
	return rows.Err()
}

func appendForeignKey(byTable map[string]*domain.Table, tableName, columnName, refTable, refColumn string) {
	t, ok := byTable[tableName]
	if !ok {
		return
	}
	for i, fk := range t.ForeignKeys {
		if fk.ReferencedTable == refTable {
			t.ForeignKeys[i].Columns = append(fk.Columns, columnName)
			t.ForeignKeys[i].ReferencedColumns = append(fk.ReferencedColumns, refColumn)
			return
		}
	}
	t.ForeignKeys = append(t.ForeignKeys, domain.ForeignKey{
		Columns:           []string{columnName},
		ReferencedTable:   refTable,
		ReferencedColumns: []string{refColumn},
	})
}

// introspectSQLite uses sqlite_master plus PRAGMA statements: SQLite exposes
// no INFORMATION_SCHEMA, and PRAGMA results cannot be parameterized, so table
// names are interpolated after being read back from sqlite_master itself
// (never from user input).
func (b *Backend) introspectSQLite(ctx context.Context) ([]domain.Table, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite_master: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tables := make([]domain.Table, 0, len(names))
	for _, name := range names {
		table := domain.Table{Name: name, BackendID: b.cfg.ID}

		colRows, err := b.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%q)`, name))
		if err != nil {
			return nil, fmt.Errorf("table_info(%s): %w", name, err)
		}
		for colRows.Next() {
			var cid int
			var colName, colType string
			var notNull, pk int
			var dflt *string
			if err := colRows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
				colRows.Close()
				return nil, err
			}
			table.Columns = append(table.Columns, domain.Column{
				Name:         colName,
				DeclaredType: colType,
				Nullable:     notNull == 0,
				Default:      dflt,
			})
			if pk > 0 {
				table.PrimaryKey = append(table.PrimaryKey, colName)
			}
		}
		colRows.Close()
		if err := colRows.Err(); err != nil {
			return nil, err
		}

		fkRows, err := b.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA foreign_key_list(%q)`, name))
		if err != nil {
			return nil, fmt.Errorf("foreign_key_list(%s): %w", name, err)
		}
		for fkRows.Next() {
			var id, seq int
			var refTable, from, to, onUpdate, onDelete, match string
			if err := fkRows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
				fkRows.Close()
				return nil, err
			}
			appendForeignKey(map[string]*domain.Table{name: &table}, name, from, refTable, to)
		}
		fkRows.Close()
		if err := fkRows.Err(); err != nil {
			return nil, err
		}

		tables = append(tables, table)
	}
	return tables, nil
}
