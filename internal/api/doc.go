// Package api defines the wire types shared by the daemon's HTTP
// management endpoints and the CLI client that consumes them.
package api
