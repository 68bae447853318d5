// Package notifications announces finished metadata work via ntfy.
//
// The default implementation publishes to the ntfy topic configured in
// config.toml and degrades to a no-op when no topic is set. Callers depend
// only on the Service interface, so alternative transports can be added
// without touching the identification code.
package notifications
