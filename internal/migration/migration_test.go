package migration

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func setupTestMigrations(t *testing.T, files map[string]string) fstest.MapFS {
	t.Helper()
	m := fstest.MapFS{}
	for name, body := range files {
		m[name] = &fstest.MapFile{Data: []byte(body)}
	}
	return m
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewRunnerRejectsUnknownDriver(t *testing.T) {
	db := openSQLite(t)
	if _, err := NewRunner(db, fstest.MapFS{}, Driver("mysql")); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if _, err := NewRunner(nil, fstest.MapFS{}, DriverSQLite); err == nil {
		t.Fatal("expected error for nil database")
	}
}

func TestReadMigrationFiles(t *testing.T) {
	db := openSQLite(t)

	tests := []struct {
		name    string
		files   map[string]string
		want    []int
		wantErr bool
	}{
		{
			name: "sorted by version",
			files: map[string]string{
				"002_jobs.sql":  "SELECT 1;",
				"001_init.sql":  "SELECT 1;",
				"README.md":     "ignored",
				"010_later.sql": "SELECT 1;",
			},
			want: []int{1, 2, 10},
		},
		{
			name:    "missing underscore",
			files:   map[string]string{"001.sql": "SELECT 1;"},
			wantErr: true,
		},
		{
			name:    "zero version",
			files:   map[string]string{"000_bad.sql": "SELECT 1;"},
			wantErr: true,
		},
		{
			name: "duplicate version",
			files: map[string]string{
				"001_a.sql": "SELECT 1;",
				"01_b.sql":  "SELECT 1;",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner, err := NewRunner(db, setupTestMigrations(t, tt.files), DriverSQLite)
			if err != nil {
				t.Fatalf("NewRunner: %v", err)
			}
			got, err := runner.ReadMigrationFiles()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReadMigrationFiles() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d migrations, want %d", len(got), len(tt.want))
			}
			for i, v := range tt.want {
				if got[i].Version != v {
					t.Errorf("migration[%d].Version = %d, want %d", i, got[i].Version, v)
				}
			}
		})
	}
}

func TestApplyMigrationsSQLite(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	runner, err := NewRunner(db, setupTestMigrations(t, map[string]string{
		"001_init.sql": "CREATE TABLE goals (id TEXT PRIMARY KEY);",
		"002_jobs.sql": "CREATE TABLE scheduled_jobs (kind TEXT, goal_id TEXT, date TEXT, PRIMARY KEY (kind, goal_id, date));",
	}), DriverSQLite)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	if err := runner.ValidateVersion(ctx); err == nil {
		t.Error("expected ValidateVersion to report a schema behind the migrations")
	}

	var logged []string
	count, err := runner.ApplyMigrations(ctx, func(s string) { logged = append(logged, s) })
	if err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}
	if count != 2 {
		t.Errorf("applied %d migrations, want 2", count)
	}
	if len(logged) == 0 {
		t.Error("expected progress messages")
	}

	st, err := runner.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Current != 2 || st.Latest != 2 {
		t.Errorf("Status = %+v", st)
	}
	if err := runner.ValidateVersion(ctx); err != nil {
		t.Errorf("ValidateVersion after apply: %v", err)
	}

	count, err = runner.ApplyMigrations(ctx, nil)
	if err != nil || count != 0 {
		t.Errorf("second ApplyMigrations = %d, %v; want 0, nil", count, err)
	}
}

func TestApplyMigrationsRollsBackFailedStep(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	runner, err := NewRunner(db, setupTestMigrations(t, map[string]string{
		"001_init.sql":   "CREATE TABLE goals (id TEXT PRIMARY KEY);",
		"002_broken.sql": "CREATE TABLE nope (;",
	}), DriverSQLite)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	count, err := runner.ApplyMigrations(ctx, nil)
	if err == nil {
		t.Fatal("expected failure from broken migration")
	}
	if count != 1 {
		t.Errorf("applied %d migrations before failure, want 1", count)
	}

	version, err := runner.GetCurrentVersion(ctx)
	if err != nil {
		t.Fatalf("GetCurrentVersion: %v", err)
	}
	if version != 1 {
		t.Errorf("version = %d, want 1", version)
	}
}

func TestApplyMigrationsRejectsNewerDatabase(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	runner, err := NewRunner(db, setupTestMigrations(t, map[string]string{
		"001_init.sql": "CREATE TABLE goals (id TEXT PRIMARY KEY);",
	}), DriverSQLite)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	if err := runner.SetVersion(ctx, 5); err != nil {
		t.Fatalf("SetVersion: %v", err)
	}

	if _, err := runner.ApplyMigrations(ctx, nil); err == nil {
		t.Error("expected error when database is newer than migrations")
	}
	if err := runner.ValidateVersion(ctx); err == nil {
		t.Error("expected ValidateVersion error when database is newer")
	}
}
