package migrations

import (
	_ "embed"
)

//go:embed schema.sql
var initialSchema string

// GetInitialSchema returns the database schema. Embedded so the binary does
// not depend on a migrations directory at runtime.
func GetInitialSchema() string {
	return initialSchema
}
