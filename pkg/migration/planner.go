package migration

import (
	"fmt"
	"slices"
	"strings"

	"github.com/marshallshelly/setlistdb/pkg/schema"
)

// quoteIdent quotes a PostgreSQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

// PlannerOptions configures migration generation.
type PlannerOptions struct {
	// IfNotExists adds IF NOT EXISTS to CREATE TABLE and CREATE INDEX.
	IfNotExists bool
}

// Planner renders SQL from schema diffs.
type Planner struct {
	options PlannerOptions
}

// NewPlanner creates a planner with IfNotExists enabled.
func NewPlanner() *Planner {
	return &Planner{options: PlannerOptions{IfNotExists: true}}
}

// NewPlannerWithOptions creates a planner with custom options.
func NewPlannerWithOptions(opts PlannerOptions) *Planner {
	return &Planner{options: opts}
}

// GenerateMigration renders up and down SQL for diff. Created tables are
// ordered so referenced tables come first; the down SQL undoes the up SQL
// in reverse order.
func (p *Planner) GenerateMigration(diff *SchemaDiff) (upSQL, downSQL string) {
	var up, down []string

	for _, table := range SortTables(diff.TablesAdded) {
		up = append(up, p.generateCreateTable(table))
		down = append(down, p.generateDropTable(table.Name))
	}

	for _, td := range diff.TablesModified {
		u, d := p.generateAlterTable(td)
		up = append(up, u...)
		down = append(down, d...)
	}

	dropped := SortTables(diff.TablesDropped)
	for _, table := range slices.Backward(dropped) {
		up = append(up, p.generateDropTable(table.Name))
		down = append(down, p.generateCreateTable(table))
	}

	slices.Reverse(down)
	return strings.Join(up, "\n\n") + "\n", strings.Join(down, "\n\n") + "\n"
}

// SortTables orders tables so that every table follows the tables its
// foreign keys reference. Ties keep input order; cycles fall back to input
// order for the remaining tables.
func SortTables(tables []*schema.TableMetadata) []*schema.TableMetadata {
	pending := slices.Clone(tables)
	present := make(map[string]bool, len(tables))
	for _, t := range tables {
		present[t.Name] = true
	}
	placed := make(map[string]bool, len(tables))
	sorted := make([]*schema.TableMetadata, 0, len(tables))

	for len(pending) > 0 {
		progress := false
		rest := pending[:0]
		for _, t := range pending {
			ready := true
			for _, fk := range t.ForeignKeys {
				ref := fk.ReferencedTable
				if ref != t.Name && present[ref] && !placed[ref] {
					ready = false
					break
				}
			}
			if ready {
				sorted = append(sorted, t)
				placed[t.Name] = true
				progress = true
			} else {
				rest = append(rest, t)
			}
		}
		pending = rest
		if !progress {
			sorted = append(sorted, pending...)
			break
		}
	}
	return sorted
}

// generateCreateTable renders CREATE TABLE plus its indexes.
func (p *Planner) generateCreateTable(table *schema.TableMetadata) string {
	var parts []string

	var singlePK string
	if table.PrimaryKey != nil && len(table.PrimaryKey.Columns) == 1 {
		singlePK = table.PrimaryKey.Columns[0]
	}

	for _, col := range table.Columns {
		def := p.generateColumnDefinition(col)
		if col.Name == singlePK {
			def += " PRIMARY KEY"
		}
		parts = append(parts, "    "+def)
	}

	if table.PrimaryKey != nil && len(table.PrimaryKey.Columns) > 1 {
		parts = append(parts, fmt.Sprintf("    CONSTRAINT %s PRIMARY KEY (%s)",
			quoteIdent(table.PrimaryKey.Name), quoteIdents(table.PrimaryKey.Columns)))
	}

	for _, fk := range table.ForeignKeys {
		parts = append(parts, "    "+p.generateForeignKeyDefinition(fk))
	}

	for _, c := range table.Constraints {
		switch c.Type {
		case schema.CheckConstraint:
			parts = append(parts, fmt.Sprintf("    CONSTRAINT %s CHECK (%s)", quoteIdent(c.Name), c.Expression))
		case schema.UniqueConstraint:
			parts = append(parts, fmt.Sprintf("    CONSTRAINT %s UNIQUE (%s)", quoteIdent(c.Name), quoteIdents(c.Columns)))
		}
	}

	create := "CREATE TABLE"
	if p.options.IfNotExists {
		create = "CREATE TABLE IF NOT EXISTS"
	}
	sql := fmt.Sprintf("%s %s (\n%s\n);", create, quoteIdent(table.Name), strings.Join(parts, ",\n"))

	var indexes []string
	for _, idx := range table.Indexes {
		indexes = append(indexes, p.generateCreateIndex(table.Name, idx))
	}
	if len(indexes) > 0 {
		sql += "\n\n" + strings.Join(indexes, "\n")
	}
	return sql
}

// generateColumnDefinition renders one column. Columns the client fills
// with a uuid also get a server default so raw inserts work.
func (p *Planner) generateColumnDefinition(col schema.ColumnMetadata) string {
	parts := []string{quoteIdent(col.Name), col.SQLType}
	if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if def := columnDefault(col); def != "" {
		parts = append(parts, "DEFAULT", def)
	}
	if col.Unique {
		parts = append(parts, "UNIQUE")
	}
	return strings.Join(parts, " ")
}

func columnDefault(col schema.ColumnMetadata) string {
	switch {
	case col.Default != nil:
		return *col.Default
	case col.ClientDefault == "uuid":
		return "gen_random_uuid()"
	}
	return ""
}

// generateForeignKeyDefinition renders a foreign key constraint.
func (p *Planner) generateForeignKeyDefinition(fk schema.ForeignKeyMetadata) string {
	parts := []string{
		fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s)", quoteIdent(fk.Name), quoteIdents(fk.Columns)),
		fmt.Sprintf("REFERENCES %s (%s)", quoteIdent(fk.ReferencedTable), quoteIdents(fk.ReferencedColumns)),
	}
	if fk.OnDelete != schema.NoAction && fk.OnDelete != "" {
		parts = append(parts, "ON DELETE "+string(fk.OnDelete))
	}
	if fk.OnUpdate != schema.NoAction && fk.OnUpdate != "" {
		parts = append(parts, "ON UPDATE "+string(fk.OnUpdate))
	}
	return strings.Join(parts, " ")
}

// generateCreateIndex renders CREATE INDEX.
func (p *Planner) generateCreateIndex(tableName string, idx schema.IndexMetadata) string {
	parts := []string{"CREATE INDEX"}
	if p.options.IfNotExists {
		parts = append(parts, "IF NOT EXISTS")
	}
	parts = append(parts, quoteIdent(idx.Name), "ON", quoteIdent(tableName))
	if idx.Type != "" && idx.Type != "btree" {
		parts = append(parts, "USING", idx.Type)
	}
	parts = append(parts, "("+quoteIdents(idx.Columns)+")")
	return strings.Join(parts, " ") + ";"
}

// generateDropTable renders DROP TABLE.
func (p *Planner) generateDropTable(tableName string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", quoteIdent(tableName))
}

// generateAlterTable renders column changes for one table.
func (p *Planner) generateAlterTable(diff TableDiff) (upSQL, downSQL []string) {
	table := quoteIdent(diff.TableName)

	for _, col := range diff.ColumnsAdded {
		upSQL = append(upSQL, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", table, p.generateColumnDefinition(col)))
		downSQL = append(downSQL, fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s;", table, quoteIdent(col.Name)))
	}

	for _, col := range diff.ColumnsDropped {
		upSQL = append(upSQL, fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s;", table, quoteIdent(col.Name)))
		downSQL = append(downSQL, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", table, p.generateColumnDefinition(col)))
	}

	for _, cd := range diff.ColumnsModified {
		u, d := p.generateColumnModification(table, cd)
		upSQL = append(upSQL, u...)
		downSQL = append(downSQL, d...)
	}
	return upSQL, downSQL
}

// generateColumnModification renders type, nullability and default changes.
// Type changes always carry a USING cast.
func (p *Planner) generateColumnModification(table string, cd ColumnDiff) (upSQL, downSQL []string) {
	col := quoteIdent(cd.ColumnName)

	if cd.TypeChanged {
		upSQL = append(upSQL, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s;",
			table, col, cd.NewColumn.SQLType, col, cd.NewColumn.SQLType))
		downSQL = append(downSQL, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s;",
			table, col, cd.OldColumn.SQLType, col, cd.OldColumn.SQLType))
	}

	if cd.NullChanged {
		set, drop := "SET NOT NULL", "DROP NOT NULL"
		if cd.NewColumn.Nullable {
			set, drop = drop, set
		}
		upSQL = append(upSQL, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s;", table, col, set))
		downSQL = append(downSQL, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s;", table, col, drop))
	}

	if cd.DefaultChanged {
		upSQL = append(upSQL, alterDefault(table, col, columnDefault(cd.NewColumn)))
		downSQL = append(downSQL, alterDefault(table, col, columnDefault(cd.OldColumn)))
	}
	return upSQL, downSQL
}

func alterDefault(table, col, def string) string {
	if def == "" {
		return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT;", table, col)
	}
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s;", table, col, def)
}
