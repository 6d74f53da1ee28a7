package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

func newExecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec SQL [SQL...]",
		Short: "Execute statements in order",
		Long:  "Execute each argument as one statement. The first failure stops the rest; earlier statements stay applied.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, store types.Store) error {
				if err := store.ExecBatch(ctx, args...); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "executed %d statement(s)\n", len(args))
				return nil
			})
		},
	}
}
