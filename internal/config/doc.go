// Package config loads, normalizes, and validates scribe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the recognized environment
// overrides (QUEUE_MAX_CONCURRENT, CACHE_MAX_ENTRIES, and friends) so
// container deployments can tune the core without editing files. A .env file
// in the working directory is loaded on a best-effort basis.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical policy names, and clear validation errors.
package config
