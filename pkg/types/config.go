package types

import (
	"context"
	"errors"
	"strings"

	"github.com/go-pkgz/lgr"
)

// MemoryName opens a private in-memory database instead of a file.
const MemoryName = ":memory:"

// UpgradeFunc brings the schema from version from to version to. It runs
// once when the stored version is behind Config.Version; from is NoVersion
// on a brand-new database. The Migrator is bound to the connection being
// opened and is only valid for the duration of the call.
type UpgradeFunc func(ctx context.Context, m Migrator, from, to int) error

// Config holds the parameters for constructing a Store.
type Config struct {
	// Name is the database file name inside DataDir, or MemoryName.
	Name string `json:"name" yaml:"name"`

	// Version is the schema version the caller's code expects.
	Version int `json:"version" yaml:"version"`

	// DataDir holds the database file. When empty, the platform data
	// directory is resolved and created.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// OnUpgrade is called when the stored schema version is behind Version.
	// When nil the version is recorded as is.
	OnUpgrade UpgradeFunc `json:"-" yaml:"-"`

	// Logger receives debug and info lines. Defaults to lgr.NoOp.
	Logger lgr.L `json:"-" yaml:"-"`
}

// Config validation errors.
var (
	ErrNameEmpty      = errors.New("database name must not be empty")
	ErrNameInvalid    = errors.New("database name must not contain path separators")
	ErrVersionInvalid = errors.New("schema version must not be negative")
)

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Name == "" {
		return ErrNameEmpty
	}
	if c.Name != MemoryName && (strings.ContainsAny(c.Name, `/\`) || c.Name == "." || c.Name == "..") {
		return ErrNameInvalid
	}
	if c.Version < 0 {
		return ErrVersionInvalid
	}
	return nil
}

// InMemory reports whether the Config names an in-memory database.
func (c Config) InMemory() bool {
	return c.Name == MemoryName
}
