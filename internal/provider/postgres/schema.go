// Package postgres implements the DocumentStore interface on a single JSONB
// table keyed by (collection, document).
package postgres

import "fmt"

const defaultTable = "clearmail_documents"

func schemaDDL(table string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    collection  TEXT NOT NULL,
    document    TEXT NOT NULL,
    fields      JSONB NOT NULL DEFAULT '{}'::jsonb,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (collection, document)
);`, table)
}
