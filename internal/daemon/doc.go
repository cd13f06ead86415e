// Package daemon coordinates the long-running yayd process.
//
// It owns the job controller for the lifetime of the process, enforces a
// single running instance through a flock-based lock file, and serves the
// HTTP API (gin) that the CLI and browser clients use to submit, observe,
// cancel, and collect downloads. Job progress is also published as
// Server-Sent Events for clients that want live updates.
//
// Keep orchestration here: download semantics belong to internal/jobs and
// the wire formats to internal/api.
package daemon
