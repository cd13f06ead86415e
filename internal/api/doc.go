// Package api defines wire-format types and converters for the daemon's HTTP
// API. It translates jobs.Snapshot values into transport-friendly DTOs so the
// CLI and browser clients can render job state without importing the
// controller.
//
// # Key Types
//
// SubmitRequest/SubmitResponse: the download submission exchange. The request
// accepts the camelCase fields browser front-ends already send (audioOnly,
// useProxy, proxyUrl).
//
// JobStatus: one job with state, human status line, progress and artifact.
//
// ResultListing: the files of a completed collection.
//
// Health: daemon runtime information including dependencies and job counts.
//
// # Errors
//
// Failures are returned as ErrorResponse {"error", "code"}. HTTPStatus maps the
// stable jobs error codes onto status codes and ErrorFromResponse turns a
// response back into an error that matches the jobs sentinels.
package api
