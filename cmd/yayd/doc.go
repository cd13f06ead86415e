// Command yayd is the command-line interface for the yayd downloader.
//
// Client commands (submit, status, cancel, result, list, forget, watch) talk
// to a running daemon over its HTTP API; `yayd serve` runs that daemon in the
// foreground. `yayd download` and `yayd prompt` run a job in-process without
// a daemon. Configuration, dependency, and history commands work locally.
package main
