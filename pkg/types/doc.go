// Package types defines the Store, Cursor and Migrator interfaces, the Value
// variant, configuration and standard errors for the Pantry storage layer.
//
// A Store owns exactly one SQLite connection. Every operation on it is
// serialized, and the schema is brought up to Config.Version lazily on the
// first operation that needs the connection.
package types
