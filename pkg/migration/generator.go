package migration

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
)

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_]*$`)

// Generator writes and reads migration files in one directory.
type Generator struct {
	migrationsDir string
	planner       *Planner
	now           func() time.Time
}

// NewGenerator creates a generator for migrationsDir.
func NewGenerator(migrationsDir string) *Generator {
	return &Generator{
		migrationsDir: migrationsDir,
		planner:       NewPlanner(),
		now:           time.Now,
	}
}

// WithClock sets the clock used for migration versions.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate writes the up and down SQL for diff.
func (g *Generator) Generate(name string, diff *SchemaDiff) (*MigrationFile, error) {
	upSQL, downSQL := g.planner.GenerateMigration(diff)
	return g.write(name, upSQL, downSQL)
}

// GenerateEmpty writes migration files with placeholder comments.
func (g *Generator) GenerateEmpty(name string) (*MigrationFile, error) {
	header := fmt.Sprintf("-- Migration: %s\n", name)
	return g.write(name,
		header+"-- Write your UP migration here\n",
		header+"-- Write your DOWN migration here\n")
}

func (g *Generator) write(name, upSQL, downSQL string) (*MigrationFile, error) {
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("invalid migration name %q: use lowercase letters, digits and underscores", name)
	}
	if err := os.MkdirAll(g.migrationsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	version := GenerateVersion(g.now())
	file := &MigrationFile{
		Version:  version,
		Name:     name,
		UpPath:   filepath.Join(g.migrationsDir, GenerateFileName(version, name, "up")),
		DownPath: filepath.Join(g.migrationsDir, GenerateFileName(version, name, "down")),
	}
	if err := os.WriteFile(file.UpPath, []byte(upSQL), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write up migration: %w", err)
	}
	if err := os.WriteFile(file.DownPath, []byte(downSQL), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write down migration: %w", err)
	}
	return file, nil
}

// ListMigrations lists migrations that have both an up and a down file,
// ordered by version. A missing directory holds no migrations.
func (g *Generator) ListMigrations() ([]MigrationFile, error) {
	entries, err := os.ReadDir(g.migrationsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []MigrationFile{}, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	files := make(map[string]*MigrationFile)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fileName := entry.Name()
		version, rest, ok := strings.Cut(fileName, "_")
		if !ok {
			continue
		}

		var name string
		var up bool
		if n, ok := strings.CutSuffix(rest, ".up.sql"); ok {
			name, up = n, true
		} else if n, ok := strings.CutSuffix(rest, ".down.sql"); ok {
			name = n
		} else {
			continue
		}

		mf, ok := files[version]
		if !ok {
			mf = &MigrationFile{Version: version, Name: name}
			files[version] = mf
		}
		if up {
			mf.UpPath = filepath.Join(g.migrationsDir, fileName)
		} else {
			mf.DownPath = filepath.Join(g.migrationsDir, fileName)
		}
	}

	migrations := []MigrationFile{}
	for _, mf := range files {
		if mf.UpPath != "" && mf.DownPath != "" {
			migrations = append(migrations, *mf)
		}
	}
	slices.SortFunc(migrations, func(a, b MigrationFile) int {
		return cmp.Compare(a.Version, b.Version)
	})
	return migrations, nil
}

// ReadMigration reads the SQL of one migration.
func (g *Generator) ReadMigration(file MigrationFile) (*Migration, error) {
	up, err := os.ReadFile(file.UpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read up migration: %w", err)
	}
	down, err := os.ReadFile(file.DownPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read down migration: %w", err)
	}
	return &Migration{
		Version: file.Version,
		Name:    file.Name,
		UpSQL:   string(up),
		DownSQL: string(down),
	}, nil
}

// LoadAll reads every migration in version order.
func (g *Generator) LoadAll() ([]Migration, error) {
	files, err := g.ListMigrations()
	if err != nil {
		return nil, err
	}
	migrations := make([]Migration, 0, len(files))
	for _, f := range files {
		m, err := g.ReadMigration(f)
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", f.Version, err)
		}
		migrations = append(migrations, *m)
	}
	return migrations, nil
}
