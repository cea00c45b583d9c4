// Command scribed runs the transcript extraction daemon: the admission
// queue, cache-first orchestrator, eviction schedule, and HTTP management
// API.
package main
