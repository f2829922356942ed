package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/marshallshelly/setlistdb/cmd/setlistdb/tui"
	"github.com/marshallshelly/setlistdb/pkg/schema"
	"github.com/marshallshelly/setlistdb/pkg/setlist"
)

type modelDoc struct {
	Model       string        `json:"model" yaml:"model"`
	Table       string        `json:"table" yaml:"table"`
	PrimaryKey  []string      `json:"primaryKey,omitempty" yaml:"primaryKey,omitempty"`
	Fields      []fieldDoc    `json:"fields" yaml:"fields"`
	Uniques     []uniqueDoc   `json:"uniques,omitempty" yaml:"uniques,omitempty"`
	Indexes     []indexDoc    `json:"indexes,omitempty" yaml:"indexes,omitempty"`
	ForeignKeys []foreignDoc  `json:"foreignKeys,omitempty" yaml:"foreignKeys,omitempty"`
	Relations   []relationDoc `json:"relations,omitempty" yaml:"relations,omitempty"`
}

type fieldDoc struct {
	Name     string   `json:"name" yaml:"name"`
	Column   string   `json:"column" yaml:"column"`
	Type     string   `json:"type" yaml:"type"`
	Optional bool     `json:"optional,omitempty" yaml:"optional,omitempty"`
	Unique   bool     `json:"unique,omitempty" yaml:"unique,omitempty"`
	Default  string   `json:"default,omitempty" yaml:"default,omitempty"`
	Values   []string `json:"values,omitempty" yaml:"values,omitempty"`
}

type uniqueDoc struct {
	Name   string   `json:"name" yaml:"name"`
	Fields []string `json:"fields" yaml:"fields"`
}

type indexDoc struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
	Type    string   `json:"type" yaml:"type"`
}

type foreignDoc struct {
	Columns    []string `json:"columns" yaml:"columns"`
	References string   `json:"references" yaml:"references"`
	OnDelete   string   `json:"onDelete,omitempty" yaml:"onDelete,omitempty"`
}

type relationDoc struct {
	Name       string `json:"name" yaml:"name"`
	Type       string `json:"type" yaml:"type"`
	Model      string `json:"model" yaml:"model"`
	ForeignKey string `json:"foreignKey" yaml:"foreignKey"`
}

func newModelDoc(t *schema.TableMetadata) modelDoc {
	doc := modelDoc{Model: t.ModelName, Table: t.Name}
	if t.PrimaryKey != nil {
		doc.PrimaryKey = t.PrimaryKey.Columns
	}
	for _, c := range t.Columns {
		f := fieldDoc{
			Name:     c.Field,
			Column:   c.Name,
			Type:     c.SQLType,
			Optional: c.Nullable,
			Unique:   c.Unique,
			Values:   c.EnumValues,
		}
		switch {
		case c.Default != nil:
			f.Default = *c.Default
		case c.ClientDefault != "":
			f.Default = c.ClientDefault + "()"
		case c.UpdatedAt:
			f.Default = "updatedAt"
		}
		doc.Fields = append(doc.Fields, f)
	}
	for _, sel := range t.UniqueSelectors() {
		if sel.Compound {
			doc.Uniques = append(doc.Uniques, uniqueDoc{Name: sel.Name, Fields: sel.Fields})
		}
	}
	for _, idx := range t.Indexes {
		doc.Indexes = append(doc.Indexes, indexDoc{Name: idx.Name, Columns: idx.Columns, Type: idx.Type})
	}
	for _, fk := range t.ForeignKeys {
		doc.ForeignKeys = append(doc.ForeignKeys, foreignDoc{
			Columns:    fk.Columns,
			References: fmt.Sprintf("%s(%s)", fk.ReferencedTable, strings.Join(fk.ReferencedColumns, ", ")),
			OnDelete:   string(fk.OnDelete),
		})
	}
	for _, r := range t.Relationships {
		doc.Relations = append(doc.Relations, relationDoc{
			Name:       r.Name,
			Type:       string(r.Type),
			Model:      r.TargetModel,
			ForeignKey: r.ForeignKey,
		})
	}
	return doc
}

func (a *app) schemaCmd() *cobra.Command {
	var (
		format      string
		interactive bool
	)
	cmd := &cobra.Command{
		Use:   "schema [MODEL]",
		Short: "Show the registered models",
		Long: `Show every registered model, or one model in detail.

Examples:
  setlistdb schema                     # Summary table
  setlistdb schema Vote                # One model in detail
  setlistdb schema --format yaml       # Export the schema as YAML
  setlistdb schema --interactive       # Browse the schema`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := setlist.Registry()
			if err != nil {
				return err
			}
			tables := reg.All()
			if len(args) == 1 {
				t, err := reg.GetByModel(args[0])
				if err != nil {
					return err
				}
				tables = []*schema.TableMetadata{t}
			}

			if interactive {
				return tui.RunSchemaUI(tables)
			}
			if a.jsonOutput {
				format = "json"
			}
			return writeSchema(cmd.OutOrStdout(), format, tables, len(args) == 1)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json or yaml")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Browse the schema in a terminal UI")
	return cmd
}

func writeSchema(w io.Writer, format string, tables []*schema.TableMetadata, detail bool) error {
	docs := make([]modelDoc, len(tables))
	for i, t := range tables {
		docs[i] = newModelDoc(t)
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(docs)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(docs); err != nil {
			return err
		}
		return enc.Close()
	case "table":
		if detail {
			for _, t := range tables {
				_, _ = fmt.Fprintln(w, tui.RenderTable(t))
			}
			return nil
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "MODEL\tTABLE\tFIELDS\tRELATIONS\tUNIQUE SELECTORS")
		_, _ = fmt.Fprintln(tw, "-----\t-----\t------\t---------\t----------------")
		for _, t := range tables {
			var selectors []string
			for _, sel := range t.UniqueSelectors() {
				selectors = append(selectors, sel.Name)
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
				t.ModelName, t.Name, len(t.Columns), len(t.Relationships), strings.Join(selectors, ", "))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q: use table, json or yaml", format)
	}
}
