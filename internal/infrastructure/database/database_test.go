package database

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpen(t *testing.T) {
	t.Run("creates database file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data", "test.db")
		db, err := Open(Config{Path: path, WALMode: true, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("opening database: %v", err)
		}
		defer db.Close()

		if db.Path() != path {
			t.Errorf("path = %q, want %q", db.Path(), path)
		}
		if err := db.HealthCheck(context.Background()); err != nil {
			t.Errorf("health check: %v", err)
		}
	})

	t.Run("single connection pool", func(t *testing.T) {
		db, err := Open(Config{Path: ":memory:", BusyTimeout: 5})
		if err != nil {
			t.Fatalf("opening database: %v", err)
		}
		defer db.Close()

		if max := db.Stats().MaxOpenConnections; max != 1 {
			t.Errorf("max open connections = %d, want 1", max)
		}
	})
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{"up migration", "20260315_120000_initial_schema.up.sql", "20260315_120000", true, true},
		{"down migration", "20260315_120000_initial_schema.down.sql", "20260315_120000", false, true},
		{"not sql", "readme.md", "", false, false},
		{"no direction", "20260315_120000_initial_schema.sql", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion || isUp != tt.wantUp {
				t.Errorf("got (%q, %v), want (%q, %v)", version, isUp, tt.wantVersion, tt.wantUp)
			}
		})
	}
}
