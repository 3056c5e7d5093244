package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	sfstream "github.com/goliatone/go-sfstream"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	// ReplayMarkerTable is created by the first migration of every dialect.
	ReplayMarkerTable = "sfstream_replay_markers"

	rootDir = "data/sql/migrations"
)

// dialectDirs maps a dialect to its directory below the migrations root.
var dialectDirs = map[string]string{
	DialectPostgres: ".",
	DialectSQLite:   "sqlite",
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
		if next := normalizeDialects(targets); len(next) > 0 {
			r.ValidationTargets = next
		}
	}
}

func WithFilesystems(filesystems ...FilesystemSpec) Option {
	return func(r *Registration) {
		copied := make([]FilesystemSpec, 0, len(filesystems))
		for _, spec := range filesystems {
			dialect := normalizeDialect(spec.Dialect)
			if dialect == "" || spec.FS == nil {
				continue
			}
			spec.Dialect = dialect
			copied = append(copied, spec)
		}
		if len(copied) > 0 {
			r.Filesystems = copied
		}
	}
}

// Filesystems returns one migration filesystem per supported dialect. The
// embedded migrations are used unless a source is given.
func Filesystems(sources ...fs.FS) ([]FilesystemSpec, error) {
	root := sfstream.GetMigrationsFS()
	if len(sources) > 0 && sources[0] != nil {
		root = sources[0]
	}

	base, basePath, err := migrationsRoot(root)
	if err != nil {
		return nil, err
	}

	out := make([]FilesystemSpec, 0, len(dialectDirs))
	for _, dialect := range []string{DialectPostgres, DialectSQLite} {
		spec, err := dialectFilesystem(base, basePath, dialect)
		if err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}

// ForDialect returns the embedded migrations of a single dialect.
func ForDialect(dialect string) (FilesystemSpec, error) {
	base, basePath, err := migrationsRoot(sfstream.GetMigrationsFS())
	if err != nil {
		return FilesystemSpec{}, err
	}
	return dialectFilesystem(base, basePath, normalizeDialect(dialect))
}

// Register hands the migrations of every targeted dialect to registerFn.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       "go-sfstream",
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
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
	if len(reg.ValidationTargets) == 0 {
		return reg, fmt.Errorf("migrations: validation targets are required")
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

func dialectFilesystem(base fs.FS, basePath string, dialect string) (FilesystemSpec, error) {
	dir, ok := dialectDirs[dialect]
	if !ok {
		return FilesystemSpec{}, fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}
	fsys := base
	path := basePath
	if dir != "." {
		sub, err := fs.Sub(base, dir)
		if err != nil {
			return FilesystemSpec{}, fmt.Errorf("migrations: resolve %s filesystem: %w", dialect, err)
		}
		fsys = sub
		path = strings.TrimSuffix(basePath, "/") + "/" + dir
		if basePath == "." {
			path = dir
		}
	}
	if err := requireReplayMarkerMigration(fsys, dialect); err != nil {
		return FilesystemSpec{}, err
	}
	return FilesystemSpec{Dialect: dialect, Path: path, FS: fsys}, nil
}

func requireReplayMarkerMigration(fsys fs.FS, dialect string) error {
	ups, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return fmt.Errorf("migrations: glob %s: %w", dialect, err)
	}
	for _, name := range ups {
		content, readErr := fs.ReadFile(fsys, name)
		if readErr != nil {
			return fmt.Errorf("migrations: read %s %s: %w", dialect, name, readErr)
		}
		if strings.Contains(string(content), ReplayMarkerTable) {
			return nil
		}
	}
	return fmt.Errorf("migrations: %s has no migration creating %s", dialect, ReplayMarkerTable)
}

func migrationsRoot(root fs.FS) (fs.FS, string, error) {
	if sub, err := fs.Sub(root, rootDir); err == nil {
		if _, statErr := fs.Stat(sub, "."); statErr == nil {
			return sub, rootDir, nil
		}
	}
	if matches, err := fs.Glob(root, "*.sql"); err == nil && len(matches) > 0 {
		return root, ".", nil
	}
	return nil, "", fmt.Errorf("migrations: %s not found", rootDir)
}

func normalizeDialect(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "postgres", "postgresql", "pg":
		return DialectPostgres
	case "sqlite", "sqlite3":
		return DialectSQLite
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
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
