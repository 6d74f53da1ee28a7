// Package cli implements the pantry command-line interface: a thin shell over
// a single Store for running statements and inspecting the schema ledger.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-pkgz/lgr"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pantry/internal/paths"
	"github.com/mesh-intelligence/pantry/pkg/sqlite"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	dbName    string
	jsonMode  bool
	debug     bool
}

var flags rootFlags

// settings is the effective configuration after flags, config.yaml and
// environment have been merged.
var settings struct {
	configDir     string
	dataDir       string
	dbName        string
	schemaVersion int
}

// NewRootCmd creates the top-level "pantry" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pantry",
		Short: "Run statements against a versioned SQLite store",
		Long: "Pantry opens a single SQLite database, keeps its schema version ledger,\n" +
			"runs statements and queries against it, and moves table rows in and out\n" +
			"as JSON lines.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:      true,
		PersistentPreRunE: prepare,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default: platform data dir)")
	root.PersistentFlags().StringVar(&flags.dbName, "db", "", "database file name (default: "+defaultDBName+")")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVar(&flags.debug, "dbg", false, "debug logging")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newExecCmd())
	root.AddCommand(newQueryCmd())
	root.AddCommand(newLedgerCmd())
	root.AddCommand(newDumpCmd())
	root.AddCommand(newLoadCmd())

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(exitUserError)
	}
	os.Exit(exitSuccess)
}

// prepare sets up logging and resolves the effective configuration.
func prepare(cmd *cobra.Command, _ []string) error {
	setupLog(flags.debug, cmd.ErrOrStderr())

	if cmd.Name() == "version" {
		return nil
	}

	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := loadConfig(configDir)
	if err != nil {
		return err
	}

	dataDir, err := paths.ResolveDataDir(flags.dataDir, cfg.GetString(cfgKeyDataDir))
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}

	settings.configDir = configDir
	settings.dataDir = dataDir
	settings.dbName = cfg.GetString(cfgKeyDBName)
	if flags.dbName != "" {
		settings.dbName = flags.dbName
	}
	settings.schemaVersion = cfg.GetInt(cfgKeySchemaVersion)
	return nil
}

// setupLog configures the global lgr logger the commands hand to the store.
func setupLog(dbg bool, errOut io.Writer) {
	logOpts := []lgr.Option{lgr.Out(io.Discard), lgr.Err(errOut), lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Out(errOut), lgr.Err(errOut), lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.CallerFunc}
	}
	lgr.Setup(logOpts...)
}

// openStore builds a Store from the effective settings. The caller must
// Close it.
func openStore() (types.Store, error) {
	store, err := sqlite.New(types.Config{
		Name:    settings.dbName,
		Version: settings.schemaVersion,
		DataDir: settings.dataDir,
		Logger:  lgr.Default(),
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

// withStore opens a Store, runs fn and closes the Store.
func withStore(ctx context.Context, fn func(context.Context, types.Store) error) (err error) {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ctx, store)
}
