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

// Package metadata writes a consolidated, queryable view of every backend's
// schema into five tables on one chosen backend. The live Schema Cache
// remains authoritative for request-time schema; this is an out-of-band
// export for tools that want to query schema metadata with SQL instead of
// calling the HTTP API.
package metadata

import (
	"context"
	"fmt"

	"github.com/querymesh/loomquery/pkg/domain"
	"github.com/querymesh/loomquery/pkg/fabric"
)

// Target is the subset of fabric.ExecutionBackend the consolidator needs to
// write metadata rows; satisfied directly by registry-issued backends.
type Target interface {
	ExecuteSQL(ctx context.Context, sql string, params map[string]interface{}, opts fabric.ExecOptions) (*fabric.QueryResult, error)
}

// Consolidator writes MergedSchema snapshots into database_metadata,
// table_metadata, column_metadata, primary_key_metadata and
// foreign_key_metadata on a target backend.
type Consolidator struct {
	dialect domain.Dialect
}

func New(dialect domain.Dialect) *Consolidator {
	return &Consolidator{dialect: dialect}
}

// EnsureTables creates the five metadata tables if they do not already
// exist, using the dialect-appropriate DDL.
func (c *Consolidator) EnsureTables(ctx context.Context, target Target) error {
	for _, stmt := range ddlFor(c.dialect) {
		if _, err := target.ExecuteSQL(ctx, stmt, nil, fabric.ExecOptions{}); err != nil {
			return fmt.Errorf("metadata: create tables: %w", err)
		}
	}
	return nil
}

// Write consolidates every backend config and its schema snapshot onto
// target, upserting rows keyed by (db_id[, table_name[, column_name]]).
func (c *Consolidator) Write(ctx context.Context, target Target, backends []domain.Backend, merged domain.MergedSchema) error {
	if err := c.EnsureTables(ctx, target); err != nil {
		return err
	}

	byID := make(map[string]domain.Backend, len(backends))
	for _, b := range backends {
		byID[b.ID] = b
	}

	for backendID, snapshot := range merged {
		cfg := byID[backendID]
		if err := c.writeDatabase(ctx, target, cfg); err != nil {
			return err
		}
		for _, table := range snapshot.Tables {
			if err := c.writeTable(ctx, target, backendID, table); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Consolidator) upsert(ctx context.Context, target Target, del, ins string, params map[string]interface{}) error {
	if _, err := target.ExecuteSQL(ctx, del, params, fabric.ExecOptions{}); err != nil {
		return err
	}
	_, err := target.ExecuteSQL(ctx, ins, params, fabric.ExecOptions{})
	return err
}

func (c *Consolidator) writeDatabase(ctx context.Context, target Target, cfg domain.Backend) error {
	del, ins := deleteInsertDatabase()
	return c.upsert(ctx, target, del, ins, map[string]interface{}{
		"db_id":   cfg.ID,
		"db_name": cfg.DisplayName,
		"db_type": string(cfg.Dialect),
	})
}

func (c *Consolidator) writeTable(ctx context.Context, target Target, backendID string, table domain.Table) error {
	del, ins := deleteInsertTable()
	if err := c.upsert(ctx, target, del, ins, map[string]interface{}{
		"db_id":      backendID,
		"table_name": table.Name,
	}); err != nil {
		return err
	}

	colDel, colIns := deleteInsertColumn()
	for ordinal, col := range table.Columns {
		if err := c.upsert(ctx, target, colDel, colIns, map[string]interface{}{
			"db_id":          backendID,
			"table_name":     table.Name,
			"column_name":    col.Name,
			"data_type":      col.DeclaredType,
			"is_nullable":    col.Nullable,
			"column_default": col.Default,
			"ordinal":        ordinal,
		}); err != nil {
			return err
		}
	}

	pkDel, pkIns := deleteInsertPrimaryKey()
	for ordinal, name := range table.PrimaryKey {
		if err := c.upsert(ctx, target, pkDel, pkIns, map[string]interface{}{
			"db_id":       backendID,
			"table_name":  table.Name,
			"column_name": name,
			"ordinal":     ordinal,
		}); err != nil {
			return err
		}
	}

	fkDel, fkIns := deleteInsertForeignKey()
	for _, fk := range table.ForeignKeys {
		for i, col := range fk.Columns {
			refCol := ""
			if i < len(fk.ReferencedColumns) {
				refCol = fk.ReferencedColumns[i]
			}
			if err := c.upsert(ctx, target, fkDel, fkIns, map[string]interface{}{
				"db_id":             backendID,
				"table_name":        table.Name,
				"column_name":       col,
				"referenced_table":  fk.ReferencedTable,
				"referenced_column": refCol,
				"referenced_db_id":  fk.ReferencedBackendID,
			}); err != nil {
				return err
			}
		}
	}

	return nil
}
