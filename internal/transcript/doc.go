// Package transcript persists extracted transcripts in SQLite and exposes
// the cache-store contract the orchestration core depends on.
//
// Reads through Get and GetBatch advance access metadata (access count and
// last-accessed timestamp) as a side effect; Exists is the side-effect-free
// probe. Writes are upserts, batch writes run in one transaction, and the
// eviction helpers (EvictOldest, EvictOlderThan) implement the LRU and TTL
// primitives the eviction service builds on.
package transcript
