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

// Package domain holds the core entities shared across the query pipeline:
// Backend, SchemaSnapshot, Intent, Entity, SqlArtifact, ResultSet, ChartSpec
// and the response envelope. These types are constructed per-request by the
// orchestrator and discarded when the response is emitted; only the three
// caches and the registry hold them across requests.
package domain

// Dialect identifies the SQL variant a Backend speaks.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
	DialectMSSQL    Dialect = "mssql"
	DialectOracle   Dialect = "oracle"
	DialectUnknown  Dialect = "unknown"
)

// DefaultBackendID is reserved for the metadata/control backend when present.
const DefaultBackendID = "default"

// Backend is a single configured relational database target with a unique id.
// Created at registry init from configuration; immutable during a process
// lifetime.
type Backend struct {
	ID          string  `json:"id" mapstructure:"id"`
	DisplayName string  `json:"name" mapstructure:"name"`
	Dialect     Dialect `json:"type" mapstructure:"type"`
	// ConnectionDescriptor is opaque; interpreted only by the backend's own
	// driver.
	ConnectionDescriptor string `json:"url" mapstructure:"url"`
	Enabled              bool   `json:"enabled" mapstructure:"enabled"`
	ReadOnly             bool   `json:"readonly" mapstructure:"readonly"`
	// SchemaTTLSeconds of 0 means use the Schema Cache default.
	SchemaTTLSeconds int64 `json:"schema_ttl_seconds,omitempty" mapstructure:"schema_ttl_seconds"`
}

// AllowsWrite reports whether stmt's first significant verb may run against b.
// A read-only backend accepts only SELECT and WITH ... SELECT statements;
// the caller is expected to have already extracted the first verb.
func (b Backend) AllowsWrite(firstVerb string) bool {
	if !b.ReadOnly {
		return true
	}
	switch firstVerb {
	case "SELECT", "WITH":
		return true
	default:
		return false
	}
}
