package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the pantry release version.
const Version = "0.1.0"

const modulePath = "github.com/mesh-intelligence/pantry"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pantry version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "pantry v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
