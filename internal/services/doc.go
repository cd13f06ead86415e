// Package services defines shared context helpers consumed by the job
// controller, the HTTP daemon, and logging.
//
// The helpers stamp job identifiers, fetch phases, and correlation
// identifiers onto a context so log lines emitted deep inside a worker or a
// request handler carry the same fields without threading them by hand.
package services
