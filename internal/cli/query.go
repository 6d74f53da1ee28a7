package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

func newQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query SQL [ARG...]",
		Short: "Run a query and print its rows",
		Long: "Run SQL and print every row. Extra arguments are bound as TEXT to the\n" +
			"statement's ? placeholders in order. Output is tab separated with a header\n" +
			"line, or one JSON object per row with --json.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bind := make([]types.Value, 0, len(args)-1)
			for _, a := range args[1:] {
				bind = append(bind, types.Text(a))
			}
			return withStore(cmd.Context(), func(ctx context.Context, store types.Store) error {
				return store.QueryCursor(ctx, args[0], bind, func(c types.Cursor) error {
					return printRows(cmd.OutOrStdout(), c, flags.jsonMode)
				})
			})
		},
	}
}

// printRows drains c and writes every row to w.
func printRows(w io.Writer, c types.Cursor, jsonMode bool) error {
	columns := c.Columns()
	if !jsonMode {
		fmt.Fprintln(w, strings.Join(columns, "\t"))
	}

	enc := json.NewEncoder(w)
	for c.Next() {
		if jsonMode {
			obj := make(map[string]types.Value, len(columns))
			for i, name := range columns {
				obj[name] = c.Value(i)
			}
			if err := enc.Encode(obj); err != nil {
				return fmt.Errorf("encode row: %w", err)
			}
			continue
		}
		cells := make([]string, len(columns))
		for i := range columns {
			cells[i] = c.Value(i).String()
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return c.Err()
}
