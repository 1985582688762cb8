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

// Package sqlbackend adapts database/sql to fabric.ExecutionBackend, serving
// the database registry (C1) and the executor (C8) for every relational
// dialect: Postgres, MySQL, SQLite and SQL Server. One Backend type handles
// all four; dialect differences are isolated to driverName, placeholder
// rewriting and the introspection queries in introspect.go.
package sqlbackend

import (
	"fmt"

	"github.com/querymesh/loomquery/pkg/domain"

	_ "github.com/denisenkom/go-mssqldb" // registers "sqlserver"
	_ "github.com/go-sql-driver/mysql"   // registers "mysql"
	_ "github.com/jackc/pgx/v5/stdlib"   // registers "pgx"

	_ "github.com/querymesh/loomquery/internal/sqlitedriver" // registers "sqlite3"
)

// driverName returns the database/sql driver name registered for d.
func driverName(d domain.Dialect) (string, error) {
	switch d {
	case domain.DialectPostgres:
		return "pgx", nil
	case domain.DialectMySQL:
		return "mysql", nil
	case domain.DialectSQLite:
		return "sqlite3", nil
	case domain.DialectMSSQL:
		return "sqlserver", nil
	default:
		return "", fmt.Errorf("sqlbackend: unsupported dialect %q", d)
	}
}

// rewritePlaceholder returns the dialect's positional placeholder syntax for
// the n-th (1-indexed) bound parameter. SQLite and MySQL both accept "?";
// Postgres requires "$n"; SQL Server accepts "@pN".
func rewritePlaceholder(d domain.Dialect, n int) string {
	switch d {
	case domain.DialectPostgres:
		return fmt.Sprintf("$%d", n)
	case domain.DialectMSSQL:
		return fmt.Sprintf("@p%d", n)
	default:
		return "?"
	}
}
