// Package migration generates, tracks and applies schema migrations for the
// models in a registry.
package migration

import (
	"time"

	"github.com/marshallshelly/setlistdb/pkg/schema"
)

// Migration represents a database migration.
type Migration struct {
	Version string // e.g. "20250601120000"
	Name    string // e.g. "create_setlist_schema"
	UpSQL   string
	DownSQL string
}

// MigrationFile represents a migration on disk.
type MigrationFile struct {
	Version  string
	Name     string
	UpPath   string
	DownPath string
}

// SchemaDiff is the set of changes from the database schema to the models.
type SchemaDiff struct {
	TablesAdded    []*schema.TableMetadata
	TablesDropped  []*schema.TableMetadata
	TablesModified []TableDiff
}

// TableDiff represents changes to a single table.
type TableDiff struct {
	TableName       string
	ColumnsAdded    []schema.ColumnMetadata
	ColumnsDropped  []schema.ColumnMetadata
	ColumnsModified []ColumnDiff
}

// ColumnDiff represents changes to a single column.
type ColumnDiff struct {
	ColumnName     string
	OldColumn      schema.ColumnMetadata
	NewColumn      schema.ColumnMetadata
	TypeChanged    bool
	NullChanged    bool
	DefaultChanged bool
}

// HasChanges reports whether the diff changes anything.
func (d *SchemaDiff) HasChanges() bool {
	return len(d.TablesAdded) > 0 || len(d.TablesDropped) > 0 || len(d.TablesModified) > 0
}

// HasChanges reports whether the table changed.
func (t *TableDiff) HasChanges() bool {
	return len(t.ColumnsAdded) > 0 || len(t.ColumnsDropped) > 0 || len(t.ColumnsModified) > 0
}

// MigrationStatus is the state of a migration in the tracking table.
type MigrationStatus string

const (
	StatusPending MigrationStatus = "pending"
	StatusApplied MigrationStatus = "applied"
	StatusFailed  MigrationStatus = "failed"
)

// MigrationRecord is one row of the tracking table.
type MigrationRecord struct {
	Version   string          `json:"version"`
	Name      string          `json:"name"`
	Status    MigrationStatus `json:"status"`
	AppliedAt *time.Time      `json:"appliedAt,omitempty"`
	Error     *string         `json:"error,omitempty"`
}

// GenerateVersion formats t as a migration version, YYYYMMDDHHmmss in UTC.
func GenerateVersion(t time.Time) string {
	return t.UTC().Format("20060102150405")
}

// GenerateFileName returns {version}_{name}.{up|down}.sql.
func GenerateFileName(version, name, direction string) string {
	return version + "_" + name + "." + direction + ".sql"
}
