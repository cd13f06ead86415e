// Package fetch defines the contract between the job controller and the
// external media fetch provider.
//
// A Provider performs the network retrieval and any post-processing for one
// source, reporting progress through a Sink that it invokes synchronously
// zero or more times before returning. When the Sink returns an error the
// provider must stop and surface that error (ErrAborted for cancellation).
// A Probe answers whether a source resolves to a collection before the fetch
// starts so the controller can pick the output template.
package fetch
