package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

func newLedgerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ledger",
		Short: "Show the schema version history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, store types.Store) error {
				history, err := store.Versions(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if flags.jsonMode {
					return json.NewEncoder(out).Encode(history)
				}
				fmt.Fprintln(out, "version\tapplied_at")
				for _, v := range history {
					fmt.Fprintf(out, "%d\t%s\n", v.Version, v.AppliedAt.Format(time.RFC3339))
				}
				return nil
			})
		},
	}
}
