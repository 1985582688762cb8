// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
package config

import (
	"testing"

	"github.com/querymesh/loomquery/pkg/domain"
)

func TestLoadBackendsSingleDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/app")
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("DATABASE_CONFIG", "")

	backends, err := loadBackends()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backends) != 1 {
		t.Fatalf("expected one backend, got %d", len(backends))
	}
	b := backends[0]
	if b.ID != domain.DefaultBackendID {
		t.Errorf("unnamed DATABASE_URL backend should take the reserved default id, got %q", b.ID)
	}
	if b.Dialect != domain.DialectPostgres || !b.Enabled || b.ReadOnly {
		t.Errorf("unexpected backend settings: %+v", b)
	}
}

func TestLoadBackendsNumberedEntries(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DATABASE_CONFIG", "")
	t.Setenv("DATABASE_1_URL", "mysql://localhost/sales")
	t.Setenv("DATABASE_1_NAME", "sales")
	t.Setenv("DATABASE_1_TYPE", "mysql")
	t.Setenv("DATABASE_2_URL", "file:archive.db")
	t.Setenv("DATABASE_2_TYPE", "sqlite")
	t.Setenv("DATABASE_2_READONLY", "true")
	t.Setenv("DATABASE_2_ENABLED", "false")

	backends, err := loadBackends()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backends) != 2 {
		t.Fatalf("expected two numbered backends, got %d: %+v", len(backends), backends)
	}
	if backends[0].ID != "sales" || backends[0].Dialect != domain.DialectMySQL {
		t.Errorf("unexpected first backend: %+v", backends[0])
	}
	if backends[1].ID != "db_2" {
		t.Errorf("unnamed numbered backend should default to db_<n>, got %q", backends[1].ID)
	}
	if !backends[1].ReadOnly || backends[1].Enabled {
		t.Errorf("DATABASE_2 flags not applied: %+v", backends[1])
	}
}

func TestLoadBackendsDatabaseConfigOverridesAndExtends(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/app")
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("DATABASE_CONFIG", `[
		{"id": "default", "type": "postgres", "url": "postgres://replica/app", "enabled": true, "readonly": true},
		{"id": "extra", "type": "sqlite", "url": "file:extra.db", "enabled": true}
	]`)

	backends, err := loadBackends()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backends) != 2 {
		t.Fatalf("expected override + extension to yield two backends, got %d: %+v", len(backends), backends)
	}
	if backends[0].ID != domain.DefaultBackendID || !backends[0].ReadOnly {
		t.Errorf("DATABASE_CONFIG entry should have replaced the default backend in place: %+v", backends[0])
	}
	if backends[0].ConnectionDescriptor != "postgres://replica/app" {
		t.Errorf("override did not take effect: %+v", backends[0])
	}
	if backends[1].ID != "extra" {
		t.Errorf("expected the unmatched entry to be appended, got %+v", backends[1])
	}
}

func TestLoadBackendsRejectsMalformedDatabaseConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DATABASE_CONFIG", "{not json")
	if _, err := loadBackends(); err == nil {
		t.Fatal("expected an error for malformed DATABASE_CONFIG")
	}
}

func TestValidateAcceptsMissingLLMCredentials(t *testing.T) {
	cfg := &Config{
		Backends:        []domain.Backend{{ID: "default", Enabled: true}},
		MetadataDialect: "sqlite",
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("a config with no LLM credentials must still validate, got %v", err)
	}
}

func TestValidateRejectsDuplicateBackendIDs(t *testing.T) {
	cfg := &Config{
		Backends: []domain.Backend{
			{ID: "default", Enabled: true},
			{ID: "default", Enabled: true},
		},
		MetadataDialect: "sqlite",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected duplicate backend ids to be rejected")
	}
}

func TestValidateRejectsUnknownMetadataDialect(t *testing.T) {
	cfg := &Config{
		Backends:        []domain.Backend{{ID: "default", Enabled: true}},
		MetadataDialect: "dbase",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an unrecognized metadata dialect to be rejected")
	}
}
