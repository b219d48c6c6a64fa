// Package mock provides an in-memory test double for the source.Connector
// interface, with seedable channels, paginated histories, thread replies and
// per-channel error injection.
package mock
