// Command tubeshelfd runs the media acquisition daemon and provides CLI
// access to its HTTP API.
package main
