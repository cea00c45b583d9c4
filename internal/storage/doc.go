// Package storage opens the shared SQLite database and applies schema
// migrations.
//
// The process uses one *sql.DB for both the transcript cache and the job
// store. Migrations are embedded SQL files applied in filename order inside a
// single transaction and recorded in the migrations ledger table, so a crash
// mid-upgrade never leaves a partially migrated schema.
package storage
