// Package notifications delivers download job outcomes via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Completed and
// failed notifications are individually switchable so a noisy batch of
// downloads can stay quiet while failures still page.
package notifications
