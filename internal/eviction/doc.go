// Package eviction keeps the transcript cache inside its configured
// budgets. A run applies the age bound, then the entry-count budget, then
// the size budget, deleting oldest-accessed entries first.
package eviction
