package bigquery

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/report-consolidator/internal/logger"
	"google.golang.org/api/iterator"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// EmbeddedMigrations is the schema shipped with the binary.
func EmbeddedMigrations() fs.FS {
	sub, _ := fs.Sub(embeddedMigrations, "migrations")
	return sub
}

var migrationNameRe = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migration is one versioned SQL file, with placeholders already substituted.
type Migration struct {
	Version  int
	Name     string
	SQL      string
	Checksum string
}

// ParseMigrationName splits "0002_create_runs.sql" into its version and name.
func ParseMigrationName(filename string) (int, string, bool) {
	m := migrationNameRe.FindStringSubmatch(filename)
	if m == nil {
		return 0, "", false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return v, m[2], true
}

// ReadMigrations loads the *.sql files of fsys sorted by version and fills in
// {{PROJECT_ID}} and {{DATASET_ID}}. The checksum covers the file before
// substitution, so the same migration matches across datasets.
func ReadMigrations(ctx context.Context, fsys fs.FS, t Tables) ([]Migration, error) {
	log := logger.FromContext(ctx)

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("ReadMigrations: reading directory: %w", err)
	}

	var out []Migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		version, name, ok := ParseMigrationName(e.Name())
		if !ok {
			log.Warn().Str("file", e.Name()).Msg("Skipping file with invalid migration name")
			continue
		}
		content, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("ReadMigrations: reading %s: %w", e.Name(), err)
		}
		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", t.ProjectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", t.DatasetID)
		out = append(out, Migration{
			Version:  version,
			Name:     name,
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   int64               `bigquery:"version"`
	Name      string              `bigquery:"name"`
	AppliedAt time.Time           `bigquery:"applied_at"`
	Checksum  bigquery.NullString `bigquery:"checksum"`
	AppliedBy bigquery.NullString `bigquery:"applied_by"`
}

// Pending returns the migrations whose version has not been applied.
func Pending(all []Migration, applied []AppliedMigration) []Migration {
	done := make(map[int]bool, len(applied))
	for _, a := range applied {
		done[int(a.Version)] = true
	}
	var out []Migration
	for _, m := range all {
		if !done[m.Version] {
			out = append(out, m)
		}
	}
	return out
}

// MigrateWithClient applies every pending migration in version order and
// records each one. It returns the number applied.
func MigrateWithClient(ctx context.Context, client *bigquery.Client, t Tables, migrations []Migration, appliedBy string) (int, error) {
	log := logger.FromContext(ctx)

	applied, err := appliedMigrations(ctx, client, t)
	if err != nil {
		return 0, fmt.Errorf("Migrate: %w", err)
	}

	pending := Pending(migrations, applied)
	for _, m := range pending {
		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("Applying migration")
		if err := runStatement(ctx, client.Query(m.SQL)); err != nil {
			return 0, fmt.Errorf("Migrate: applying %04d_%s: %w", m.Version, m.Name, err)
		}

		q := client.Query(fmt.Sprintf(`
			INSERT INTO %s (version, name, applied_at, checksum, applied_by)
			VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
		`, t.Qualified("schema_migrations")))
		q.Parameters = []bigquery.QueryParameter{
			{Name: "version", Value: m.Version},
			{Name: "name", Value: m.Name},
			{Name: "checksum", Value: m.Checksum},
			{Name: "applied_by", Value: appliedBy},
		}
		if err := runStatement(ctx, q); err != nil {
			return 0, fmt.Errorf("Migrate: recording %04d_%s: %w", m.Version, m.Name, err)
		}
	}
	return len(pending), nil
}

func appliedMigrations(ctx context.Context, client *bigquery.Client, t Tables) ([]AppliedMigration, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM %s
		ORDER BY version ASC
	`, t.Qualified("schema_migrations")))

	it, err := q.Read(ctx)
	if err != nil {
		// The first migration creates the table.
		if strings.Contains(err.Error(), "Not found") {
			return nil, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var out []AppliedMigration
	for {
		var row AppliedMigration
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating applied migrations: %w", err)
		}
		out = append(out, row)
	}
	return out, nil
}
