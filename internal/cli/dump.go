package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pantry/internal/jsonl"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

func newDumpCmd() *cobra.Command {
	var orderBy string
	cmd := &cobra.Command{
		Use:   "dump TABLE [FILE]",
		Short: "Write a table as JSON lines",
		Long: "Write every row of TABLE as one JSON object per line. With FILE the\n" +
			"file is replaced atomically; otherwise rows go to stdout. BLOB values are\n" +
			"written as {\"$blob\": \"<base64>\"} so load restores them as BLOBs. Rows\n" +
			"come in table scan order unless --order-by is given.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			w := jsonl.NewWriter()
			err := withStore(cmd.Context(), func(ctx context.Context, store types.Store) error {
				q := types.Select{Table: table, OrderBy: orderBy}
				return store.SelectCursor(ctx, q, func(c types.Cursor) error {
					columns := c.Columns()
					for c.Next() {
						obj := make(map[string]any, len(columns))
						for i, name := range columns {
							obj[name] = dumpValue(c.Value(i))
						}
						if err := w.Write(obj); err != nil {
							return err
						}
					}
					return c.Err()
				})
			})
			if err != nil {
				return err
			}

			if len(args) == 1 {
				_, err := w.WriteTo(cmd.OutOrStdout())
				return err
			}
			if err := w.Commit(args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dumped %d row(s) from %s\n", w.Len(), table)
			return nil
		},
	}
	cmd.Flags().StringVar(&orderBy, "order-by", "", "ORDER BY expression for the dump")
	return cmd
}

func newLoadCmd() *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "load TABLE FILE",
		Short: "Insert JSON lines into a table",
		Long: "Insert one row per JSON object in FILE, in a single transaction. Object\n" +
			"keys name the columns; a key missing from a record binds NULL. Numbers must\n" +
			"be integers. {\"$blob\": \"<base64>\"} binds a BLOB; other nested objects\n" +
			"and arrays are stored as JSON blobs.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			records, err := jsonl.ReadFile(args[1])
			if err != nil {
				return err
			}
			columns, rows, err := recordsToRows(records)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "loaded 0 row(s) into %s\n", table)
				return nil
			}
			err = withStore(cmd.Context(), func(ctx context.Context, store types.Store) error {
				return store.InsertBatch(ctx, table, columns, rows, replace)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d row(s) into %s\n", len(rows), table)
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "replace rows that collide on a unique key")
	return cmd
}

// blobKey marks a BLOB cell in dump output: {"$blob": "<base64>"}.
const blobKey = "$blob"

// dumpValue returns the JSON form of one cell. BLOBs are wrapped so load
// can tell them from TEXT.
func dumpValue(v types.Value) any {
	if b, ok := v.AsBlob(); ok {
		return map[string]string{blobKey: base64.StdEncoding.EncodeToString(b)}
	}
	return v
}

// recordsToRows converts JSON objects into rows over the sorted union of
// their keys.
func recordsToRows(records []json.RawMessage) ([]string, [][]types.Value, error) {
	objects := make([]map[string]any, 0, len(records))
	keys := map[string]bool{}
	for i, rec := range records {
		dec := json.NewDecoder(bytes.NewReader(rec))
		dec.UseNumber()
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil || obj == nil {
			return nil, nil, fmt.Errorf("record %d: not a JSON object", i+1)
		}
		for k := range obj {
			keys[k] = true
		}
		objects = append(objects, obj)
	}

	columns := make([]string, 0, len(keys))
	for k := range keys {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	rows := make([][]types.Value, 0, len(objects))
	for i, obj := range objects {
		row := make([]types.Value, len(columns))
		for j, col := range columns {
			v, err := jsonToValue(obj[col])
			if err != nil {
				return nil, nil, fmt.Errorf("record %d, column %s: %w", i+1, col, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return columns, rows, nil
}

// jsonToValue maps a decoded JSON value onto the closed Value set.
func jsonToValue(v any) (types.Value, error) {
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return types.Value{}, fmt.Errorf("%w: non-integer number %s", types.ErrUnsupportedValue, x)
		}
		return types.Int(n), nil
	case map[string]any:
		if enc, ok := x[blobKey]; ok && len(x) == 1 {
			s, ok := enc.(string)
			if !ok {
				return types.Value{}, fmt.Errorf("%w: %s must be a base64 string", types.ErrUnsupportedValue, blobKey)
			}
			b, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return types.Value{}, fmt.Errorf("%w: %s: %w", types.ErrUnsupportedValue, blobKey, err)
			}
			return types.Blob(b), nil
		}
		return types.JSON(x)
	case []any:
		return types.JSON(x)
	default:
		return types.ValueOf(x)
	}
}
