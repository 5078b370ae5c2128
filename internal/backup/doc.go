// Package backup implements the scheduled point-in-time backup export
// job for a DynamoDB table.
//
// The package provides two job variants built from the same parts: a
// live export that asks the service for a snapshot of the source table
// at a past point in time, and a restore path that materializes the
// snapshot as a temporary table, exports it, and guarantees the
// temporary table is deleted afterwards, including when the export
// fails. The export artifact (manifest plus data files) is written to
// S3 by the service itself; this package only initiates, waits, and
// verifies.
package backup
