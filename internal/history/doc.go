// Package history persists terminal download jobs to a SQLite ledger so the
// CLI can list past downloads after the daemon restarts. The in-memory job
// table stays authoritative for live jobs; the ledger is written once per job
// when it reaches a terminal state.
package history
