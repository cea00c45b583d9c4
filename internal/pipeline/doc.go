// Package pipeline contains the cache-first extraction orchestrator. For
// each job it partitions requested videos into cache hits and misses,
// drives misses through the admission queue, writes fresh outcomes back to
// the cache, and keeps the job record's progress and terminal state honest.
package pipeline
