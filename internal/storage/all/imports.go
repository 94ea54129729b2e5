// Package all wires every built-in journal backend into the storage factory.
//
// Importing it (as a blank import) runs the init functions of each backend,
// which register their factories and DDL bootstrappers:
//
//   - "postgres" (datestd/internal/storage/postgres)
//   - "mssql"    (datestd/internal/storage/mssql)
//   - "sqlite"   (datestd/internal/storage/sqlite)
//
// Typical usage (in cmd/datestd):
//
//	import _ "datestd/internal/storage/all"
//
//	repo, err := storage.New(ctx, storage.Config{Kind: p.Journal.Kind, DSN: p.Journal.DB.DSN, Table: p.Journal.DB.Table})
//	if err != nil { ... }
//	defer repo.Close()
//	if p.Journal.DB.AutoCreateTable {
//	    err = storage.EnsureJournal(ctx, p.Journal.Kind, p.Journal.DB.Table, repo)
//	}
package all

import (
	_ "datestd/internal/storage/mssql"
	_ "datestd/internal/storage/postgres"
	_ "datestd/internal/storage/sqlite"
)
