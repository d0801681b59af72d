// Package store provides the SQLite-backed sample log for gpiolog.
//
// The store owns a single table:
//
//	gpio_log(id INTEGER PRIMARY KEY, timestamp TEXT, pin_state INTEGER, led_state INTEGER)
//
// Rows are append-only. The only delete is ClearAll, which empties the table.
// Ids are assigned by SQLite and are strictly increasing in insertion order.
//
// # Live file vs snapshot
//
// Open is used by the bridge process that owns the live file. It creates the
// file and the table if needed.
//
// OpenSnapshot is used by the viewer against a byte copy of the live file. The
// connection is read-only and never touches the schema, so a missing table
// surfaces as a StorageError on the first query.
//
// The journal mode is left at the SQLite default (rollback journal). With WAL,
// recent commits would live in a side file and a raw copy of the main file
// could miss them.
package store
