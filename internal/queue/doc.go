// Package queue bounds extraction concurrency. Submissions run at most
// MaxConcurrent tasks at once; up to MaxQueued more wait FIFO for a slot,
// and anything beyond that is rejected with a FullError so load sheds at
// the edge instead of accumulating.
package queue
