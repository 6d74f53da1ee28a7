package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration and the database",
		Long:  "Write config.yaml if missing, then open the database so its schema version ledger exists.",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, _ []string) error {
	if err := writeConfigIfMissing(settings.configDir, configFile{
		DataDir:       settings.dataDir,
		DBName:        settings.dbName,
		SchemaVersion: settings.schemaVersion,
	}); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	var (
		dbPath  string
		version int
	)
	err := withStore(cmd.Context(), func(ctx context.Context, store types.Store) error {
		v, err := store.Version(ctx)
		if err != nil {
			return fmt.Errorf("initialize storage: %w", err)
		}
		dbPath, version = store.Path(), v
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Pantry initialized at %s (schema version %d)\n", dbPath, version)
	return nil
}
