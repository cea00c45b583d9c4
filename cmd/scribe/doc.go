// Command scribe is the CLI for the scribed daemon: submitting extraction
// jobs, watching their progress, and managing the transcript cache over the
// daemon's HTTP management API.
package main
