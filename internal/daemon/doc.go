// Package daemon wires the catalog store, tool client, worker pool, and
// notification client into a single-instance background service with an HTTP
// control API.
package daemon
