package commands

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/marshallshelly/setlistdb/cmd/setlistdb/output"
	"github.com/marshallshelly/setlistdb/pkg/orm"
)

func (a *app) queryCmd() *cobra.Command {
	var (
		rawArgs string
		inTx    bool
	)
	cmd := &cobra.Command{
		Use:   "query MODEL OPERATION",
		Short: "Run a client operation with JSON arguments",
		Long: fmt.Sprintf(`Run one operation of a model accessor and print the JSON result.

Operations: %s

Examples:
  setlistdb query Artist findMany --args '{"where": {"genres": {"has": "rock"}}, "take": 5}'
  setlistdb query Show count --args '{"where": {"status": "upcoming"}}'
  setlistdb query SetlistSong update --tx --args - < bump.json`, strings.Join(orm.Operations(), ", ")),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, op := args[0], args[1]
			if !slices.Contains(orm.Operations(), op) {
				return fmt.Errorf("unknown operation %q", op)
			}
			opArgs, err := decodeArgs(cmd.InOrStdin(), rawArgs)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			conn, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()
			client, err := a.client(conn)
			if err != nil {
				return err
			}

			var result any
			run := func(ctx context.Context, db *orm.DB) error {
				m, err := db.Model(model)
				if err != nil {
					return err
				}
				result, err = m.Exec(ctx, op, opArgs)
				return err
			}
			if inTx {
				err = client.DB().Transaction(ctx, run)
			} else {
				err = run(ctx, client.DB())
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVarP(&rawArgs, "args", "a", "", "Operation arguments as a JSON object, or - to read stdin")
	cmd.Flags().BoolVar(&inTx, "tx", false, "Run the operation in a transaction")
	cmd.AddCommand(a.sqlCmd())
	return cmd
}

func (a *app) sqlCmd() *cobra.Command {
	var (
		rawParams string
		exec      bool
	)
	cmd := &cobra.Command{
		Use:   "sql STATEMENT",
		Short: "Run a parameterized SQL statement",
		Long: `Run raw SQL. Queries print their rows as JSON; with --exec the statement's
affected row count is printed instead.

Examples:
  setlistdb query sql 'SELECT name FROM artists WHERE popularity > $1' --params '[50]'
  setlistdb query sql --exec 'DELETE FROM vote_analytics WHERE daily_votes = 0'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var params []any
			if rawParams != "" {
				if err := json.Unmarshal([]byte(rawParams), &params); err != nil {
					return fmt.Errorf("invalid --params: %w", err)
				}
			}

			ctx := cmd.Context()
			conn, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()
			client, err := a.client(conn)
			if err != nil {
				return err
			}

			if exec {
				n, err := client.ExecuteRaw(ctx, args[0], params...)
				if err != nil {
					return err
				}
				output.Success("%d row(s) affected", n)
				return nil
			}
			rows, err := client.QueryRaw(ctx, args[0], params...)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().StringVarP(&rawParams, "params", "p", "", "Statement parameters as a JSON array")
	cmd.Flags().BoolVar(&exec, "exec", false, "Execute the statement and print the affected row count")
	return cmd
}

// decodeArgs parses the --args value. An empty value means no arguments.
func decodeArgs(stdin io.Reader, raw string) (map[string]any, error) {
	if raw == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read arguments: %w", err)
		}
		raw = string(b)
	}
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid --args: %w", err)
	}
	if args == nil {
		return nil, fmt.Errorf("invalid --args: expected a JSON object")
	}
	return args, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
