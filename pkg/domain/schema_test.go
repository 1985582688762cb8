package domain

import (
	"testing"
	"time"
)

func TestSchemaSnapshotStale(t *testing.T) {
	now := time.Now()
	fresh := SchemaSnapshot{FetchedAt: now.Add(-time.Minute), TTL: time.Hour}
	if fresh.Stale(now) {
		t.Error("snapshot within TTL should not be stale")
	}

	stale := SchemaSnapshot{FetchedAt: now.Add(-2 * time.Hour), TTL: time.Hour}
	if !stale.Stale(now) {
		t.Error("snapshot past TTL should be stale")
	}

	noTTL := SchemaSnapshot{FetchedAt: now.Add(-24 * time.Hour), TTL: 0}
	if noTTL.Stale(now) {
		t.Error("a zero TTL should never be considered stale")
	}
}

func TestSchemaSnapshotTableLookup(t *testing.T) {
	snap := SchemaSnapshot{Tables: []Table{
		{Name: "orders", Columns: []Column{{Name: "id"}, {Name: "amount"}}},
	}}

	tbl, ok := snap.Table("orders")
	if !ok {
		t.Fatal("expected to find orders table")
	}
	if got := tbl.ColumnNames(); len(got) != 2 || got[0] != "id" || got[1] != "amount" {
		t.Errorf("unexpected column names: %v", got)
	}

	if _, ok := snap.Table("missing"); ok {
		t.Error("expected missing table lookup to fail")
	}

	if !(SchemaSnapshot{}).Empty() {
		t.Error("a snapshot with no tables should be Empty")
	}
	if snap.Empty() {
		t.Error("a snapshot with tables should not be Empty")
	}
}

func TestMergedSchemaTables(t *testing.T) {
	merged := MergedSchema{
		"db1": {Tables: []Table{{Name: "orders", BackendID: "db1"}}},
		"db2": {Tables: []Table{{Name: "customers", BackendID: "db2"}}},
	}

	tables := merged.Tables()
	if len(tables) != 2 {
		t.Fatalf("expected 2 tables across both backends, got %d", len(tables))
	}

	seen := map[string]string{}
	for _, tbl := range tables {
		seen[tbl.Name] = tbl.BackendID
	}
	if seen["orders"] != "db1" || seen["customers"] != "db2" {
		t.Errorf("tables did not carry their originating backend id: %v", seen)
	}
}
