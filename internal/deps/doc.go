// Package deps checks the availability of external binaries the daemon
// depends on, so missing helpers show up in status output instead of as
// per-item failures.
package deps
