// Package history persists a record of every job the orchestrator runs in
// SQLite.
//
// The Store implements workflow.Recorder: a row is inserted when a job starts
// and completed when it reaches a terminal status. Schema changes ship as
// numbered files under migrations/ and are applied in order on Open.
package history
