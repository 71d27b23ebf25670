// Package migrations exposes the embedded issuer schema per SQL dialect and
// hands it to a caller supplied registrar, usually go-persistence-bun.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	issuer "github.com/goliatone/go-issuer"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	defaultSourceLabel = "go-issuer"
	migrationsDir      = "data/sql/migrations"
)

// dialectDirs maps each dialect to its directory below migrationsDir.
var dialectDirs = []struct {
	dialect string
	dir     string
}{
	{dialect: DialectPostgres, dir: "."},
	{dialect: DialectSQLite, dir: "sqlite"},
}

type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	Filesystems       []FilesystemSpec
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithDialectSourceLabel(label string) Option {
	return func(r *Registration) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			r.SourceLabel = trimmed
		}
	}
}

// WithValidationTargets limits registration to the given dialects.
func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		if normalized := normalizeDialects(targets); len(normalized) > 0 {
			r.ValidationTargets = normalized
		}
	}
}

func WithFilesystems(filesystems ...FilesystemSpec) Option {
	return func(r *Registration) {
		kept := make([]FilesystemSpec, 0, len(filesystems))
		for _, spec := range filesystems {
			dialect := normalizeDialect(spec.Dialect)
			if dialect == "" || spec.FS == nil {
				continue
			}
			kept = append(kept, FilesystemSpec{Dialect: dialect, Path: spec.Path, FS: spec.FS})
		}
		if len(kept) > 0 {
			r.Filesystems = kept
		}
	}
}

// DialectForDriver maps a database/sql driver name to a migration dialect.
func DialectForDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pq", "pgx":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("migrations: no dialect for driver %q", driver)
	}
}

// Filesystems returns one filesystem per dialect. Every dialect must carry
// at least one up migration and each up file needs a matching down file.
func Filesystems(sources ...fs.FS) ([]FilesystemSpec, error) {
	root := issuer.GetMigrationsFS()
	if len(sources) > 0 && sources[0] != nil {
		root = sources[0]
	}
	base, basePath, err := migrationsRoot(root)
	if err != nil {
		return nil, err
	}

	filesystems := make([]FilesystemSpec, 0, len(dialectDirs))
	for _, entry := range dialectDirs {
		fsys := base
		path := basePath
		if entry.dir != "." {
			if fsys, err = fs.Sub(base, entry.dir); err != nil {
				return nil, fmt.Errorf("migrations: resolve %s filesystem: %w", entry.dialect, err)
			}
			path = pathJoin(basePath, entry.dir)
		}
		if err := checkPairs(entry.dialect, path, fsys); err != nil {
			return nil, err
		}
		filesystems = append(filesystems, FilesystemSpec{Dialect: entry.dialect, Path: path, FS: fsys})
	}
	return filesystems, nil
}

// Register calls registerFn once for every filesystem whose dialect is a
// validation target.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       defaultSourceLabel,
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}
	filesystems, err := Filesystems()
	if err != nil {
		return reg, err
	}
	reg.Filesystems = filesystems
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}

	switch {
	case registerFn == nil:
		return reg, fmt.Errorf("migrations: register function is required")
	case len(reg.ValidationTargets) == 0:
		return reg, fmt.Errorf("migrations: validation targets are required")
	case strings.TrimSpace(reg.SourceLabel) == "":
		return reg, fmt.Errorf("migrations: source label is required")
	case len(reg.Filesystems) == 0:
		return reg, fmt.Errorf("migrations: filesystems are required")
	}

	for _, spec := range reg.Filesystems {
		if !slices.Contains(reg.ValidationTargets, spec.Dialect) {
			continue
		}
		if err := registerFn(ctx, spec.Dialect, reg.SourceLabel, spec.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", spec.Dialect, spec.Path, err)
		}
	}
	return reg, nil
}

func checkPairs(dialect string, path string, fsys fs.FS) error {
	ups, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return fmt.Errorf("migrations: glob %s %s: %w", dialect, path, err)
	}
	if len(ups) == 0 {
		return fmt.Errorf("migrations: %s filesystem %q has no *.up.sql files", dialect, path)
	}
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(fsys, down); err != nil {
			return fmt.Errorf("migrations: %s migration %s has no %s", dialect, up, down)
		}
	}
	return nil
}

func migrationsRoot(root fs.FS) (fs.FS, string, error) {
	if _, err := fs.Stat(root, migrationsDir); err == nil {
		sub, err := fs.Sub(root, migrationsDir)
		if err != nil {
			return nil, "", err
		}
		return sub, migrationsDir, nil
	}
	// A root that already holds the .sql files is used as is.
	if matches, err := fs.Glob(root, "*.sql"); err == nil && len(matches) > 0 {
		return root, ".", nil
	}
	return nil, "", fmt.Errorf("migrations: %s not found", migrationsDir)
}

func normalizeDialect(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func normalizeDialects(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		dialect := normalizeDialect(value)
		if dialect == "" || slices.Contains(out, dialect) {
			continue
		}
		out = append(out, dialect)
	}
	return out
}

func pathJoin(base string, suffix string) string {
	if base == "." {
		return suffix
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(suffix, "/")
}
