// Package jobs implements the download job controller.
//
// A Controller accepts download requests, runs each one on its own worker
// against a fetch.Provider, and translates provider progress events into a
// normalized, lock-protected job record that callers can snapshot at any
// time. Jobs move through a small state machine:
//
//	pending -> running -> completed | failed | cancelled
//	pending -> cancelled
//
// Terminal states are final. Cancellation is cooperative: Cancel sets a flag
// that the worker's progress sink observes on the next provider callback, and
// the job's fetch context is cancelled as well so a stalled provider is
// interrupted. Errors surfaced after a cancel request are classified as
// cancelled rather than failed.
//
// The package also owns the quality-to-format lookup table, output template
// derivation, and the directory scan that resolves a finished job's artifact
// when the provider's final filename differs from the template.
package jobs
