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
package domain

import "time"

// Column describes a single table column.
type Column struct {
	Name         string
	DeclaredType string
	Nullable     bool
	Default      *string
}

// ForeignKey describes a foreign key relationship originating from Columns.
type ForeignKey struct {
	Columns           []string
	ReferencedTable   string
	ReferencedColumns []string
	// ReferencedBackendID is set when the referenced table lives in a
	// different backend than the one this FK was discovered on, or left
	// empty when the referenced table could not be located in any snapshot
	// (recorded as external per the schema cache's invariant).
	ReferencedBackendID string
}

// Table is one table or view within a SchemaSnapshot.
type Table struct {
	Name string
	// BackendID identifies the table's originating backend. Set explicitly
	// when the table is served as part of a merged, cross-backend snapshot;
	// equal to the owning SchemaSnapshot.BackendID otherwise.
	BackendID  string
	Columns    []Column
	PrimaryKey []string
	ForeignKeys []ForeignKey
}

// ColumnNames returns the table's column names in declared order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// SchemaSnapshot is a point-in-time view of schema metadata for one Backend.
type SchemaSnapshot struct {
	BackendID string
	Tables    []Table
	FetchedAt time.Time
	TTL       time.Duration
}

// Stale reports whether the snapshot should be refreshed as of now.
func (s SchemaSnapshot) Stale(now time.Time) bool {
	if s.TTL <= 0 {
		return false
	}
	return now.Sub(s.FetchedAt) >= s.TTL
}

// Table looks up a table by name (case-sensitive, as introspected).
func (s SchemaSnapshot) Table(name string) (Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Empty reports whether the snapshot carries no tables.
func (s SchemaSnapshot) Empty() bool {
	return len(s.Tables) == 0
}

// MergedSchema is an aggregate, cross-backend view keyed by backend id.
type MergedSchema map[string]SchemaSnapshot

// Tables flattens a MergedSchema into a single ordered sequence, tagging
// each table with its originating backend id (already set on Table.BackendID
// by the Schema Cache when it builds the merge).
func (m MergedSchema) Tables() []Table {
	var all []Table
	for _, snap := range m {
		all = append(all, snap.Tables...)
	}
	return all
}
