// Package cli implements the noteflow command line: process a single lecture
// recording, serve the HTTP API, run startup checks and print the version.
package cli
