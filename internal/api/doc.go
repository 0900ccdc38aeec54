// Package api defines the daemon's HTTP wire types and a client for them,
// shared between the server and the CLI subcommands.
package api
