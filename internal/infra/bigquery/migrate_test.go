package bigquery

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"
)

func TestParseMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_init_schema_migrations.sql", true, 1, "init_schema_migrations"},
		{"001_invalid.sql", false, 0, ""},
		{"0001_test", false, 0, ""},
		{"0001.sql", false, 0, ""},
		{"invalid_0001_test.sql", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := ParseMigrationName(tt.filename)
			if ok != tt.valid || version != tt.version || name != tt.name {
				t.Errorf("ParseMigrationName(%q) = %d, %q, %v", tt.filename, version, name, ok)
			}
		})
	}
}

func TestReadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_second.sql": {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.b` (x INT64);")},
		"0001_first.sql":  {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.a` (x INT64);")},
		"README.md":       {Data: []byte("notes")},
	}

	a, err := ReadMigrations(context.Background(), fsys, Tables{ProjectID: "p1", DatasetID: "d"})
	if err != nil {
		t.Fatalf("ReadMigrations() error = %v", err)
	}
	if len(a) != 2 || a[0].Version != 1 || a[1].Version != 2 {
		t.Fatalf("unexpected migrations %+v", a)
	}
	if !strings.Contains(a[0].SQL, "`p1.d.a`") {
		t.Errorf("placeholders not substituted: %s", a[0].SQL)
	}

	b, err := ReadMigrations(context.Background(), fsys, Tables{ProjectID: "p2", DatasetID: "other"})
	if err != nil {
		t.Fatalf("ReadMigrations() error = %v", err)
	}
	if a[0].Checksum != b[0].Checksum {
		t.Error("checksum should not depend on project or dataset")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	ms, err := ReadMigrations(context.Background(), EmbeddedMigrations(), Tables{ProjectID: "p", DatasetID: "d"})
	if err != nil {
		t.Fatalf("ReadMigrations() error = %v", err)
	}
	var all strings.Builder
	for i, m := range ms {
		if m.Version != i+1 {
			t.Errorf("migration %d has version %d", i, m.Version)
		}
		all.WriteString(m.SQL)
	}
	for _, table := range []string{runsTable, categoriesTable, transactionsTable, "schema_migrations"} {
		if !strings.Contains(all.String(), "`p.d."+table+"`") {
			t.Errorf("no migration creates %s", table)
		}
	}
}

func TestPending(t *testing.T) {
	all := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	got := Pending(all, []AppliedMigration{{Version: 1}, {Version: 3}})
	if len(got) != 1 || got[0].Version != 2 {
		t.Errorf("Pending() = %+v", got)
	}
}
