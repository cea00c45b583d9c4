// Package daemon wires the extraction core together for the scribed
// process: job and cache stores over one database handle, the admission
// queue, the orchestrator, the eviction schedule, and the HTTP management
// API. A lock file keeps the daemon single-instance per data directory.
package daemon
