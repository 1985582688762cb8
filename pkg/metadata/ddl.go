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
package metadata

import "github.com/querymesh/loomquery/pkg/domain"

// ddlFor returns the CREATE TABLE statements for the five metadata tables,
// adapted per dialect for timestamp defaults and boolean storage. Statements
// are idempotent (IF NOT EXISTS) so EnsureTables is safe to call on every
// consolidation run.
func ddlFor(d domain.Dialect) []string {
	ts := "TIMESTAMP"
	now := "CURRENT_TIMESTAMP"
	boolType := "BOOLEAN"
	switch d {
	case domain.DialectPostgres:
		ts = "TIMESTAMPTZ"
		now = "NOW()"
	case domain.DialectSQLite:
		ts = "TEXT"
		now = "(strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))"
		boolType = "INTEGER"
	case domain.DialectMySQL:
		now = "CURRENT_TIMESTAMP"
		boolType = "TINYINT(1)"
	case domain.DialectMSSQL:
		ts = "DATETIME2"
		now = "SYSUTCDATETIME()"
		boolType = "BIT"
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS database_metadata (
			db_id TEXT PRIMARY KEY,
			db_name TEXT NOT NULL,
			db_type TEXT NOT NULL,
			created_at ` + ts + ` NOT NULL DEFAULT ` + now + `,
			updated_at ` + ts + ` NOT NULL DEFAULT ` + now + `
		)`,
		`CREATE TABLE IF NOT EXISTS table_metadata (
			db_id TEXT NOT NULL,
			table_name TEXT NOT NULL,
			updated_at ` + ts + ` NOT NULL DEFAULT ` + now + `,
			PRIMARY KEY (db_id, table_name)
		)`,
		`CREATE TABLE IF NOT EXISTS column_metadata (
			db_id TEXT NOT NULL,
			table_name TEXT NOT NULL,
			column_name TEXT NOT NULL,
			data_type TEXT NOT NULL,
			is_nullable ` + boolType + ` NOT NULL DEFAULT 1,
			column_default TEXT,
			ordinal INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (db_id, table_name, column_name)
		)`,
		`CREATE TABLE IF NOT EXISTS primary_key_metadata (
			db_id TEXT NOT NULL,
			table_name TEXT NOT NULL,
			column_name TEXT NOT NULL,
			ordinal INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (db_id, table_name, column_name)
		)`,
		`CREATE TABLE IF NOT EXISTS foreign_key_metadata (
			db_id TEXT NOT NULL,
			table_name TEXT NOT NULL,
			column_name TEXT NOT NULL,
			referenced_table TEXT NOT NULL,
			referenced_column TEXT NOT NULL,
			referenced_db_id TEXT,
			PRIMARY KEY (db_id, table_name, column_name, referenced_table, referenced_column)
		)`,
	}
}

// Each metadata row is written as a DELETE followed by an INSERT, issued as
// two separate statements through ExecuteSQL rather than one multi-statement
// string: ExecuteSQL runs exactly one statement per call, and driver support
// for multi-statement execution varies too much across dialects to rely on.

func deleteInsertDatabase() (string, string) {
	return `DELETE FROM database_metadata WHERE db_id = :db_id`,
		`INSERT INTO database_metadata (db_id, db_name, db_type) VALUES (:db_id, :db_name, :db_type)`
}

func deleteInsertTable() (string, string) {
	return `DELETE FROM table_metadata WHERE db_id = :db_id AND table_name = :table_name`,
		`INSERT INTO table_metadata (db_id, table_name) VALUES (:db_id, :table_name)`
}

func deleteInsertColumn() (string, string) {
	return `DELETE FROM column_metadata WHERE db_id = :db_id AND table_name = :table_name AND column_name = :column_name`,
		`INSERT INTO column_metadata (db_id, table_name, column_name, data_type, is_nullable, column_default, ordinal) ` +
			`VALUES (:db_id, :table_name, :column_name, :data_type, :is_nullable, :column_default, :ordinal)`
}

func deleteInsertPrimaryKey() (string, string) {
	return `DELETE FROM primary_key_metadata WHERE db_id = :db_id AND table_name = :table_name AND column_name = :column_name`,
		`INSERT INTO primary_key_metadata (db_id, table_name, column_name, ordinal) ` +
			`VALUES (:db_id, :table_name, :column_name, :ordinal)`
}

func deleteInsertForeignKey() (string, string) {
	return `DELETE FROM foreign_key_metadata WHERE db_id = :db_id AND table_name = :table_name AND column_name = :column_name ` +
			`AND referenced_table = :referenced_table AND referenced_column = :referenced_column`,
		`INSERT INTO foreign_key_metadata (db_id, table_name, column_name, referenced_table, referenced_column, referenced_db_id) ` +
			`VALUES (:db_id, :table_name, :column_name, :referenced_table, :referenced_column, :referenced_db_id)`
}
