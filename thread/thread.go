// Package thread adjusts the OS scheduling of goroutines that bit-bang timing critical
// signals.
package thread

// Scheduling policies, as defined by sched(7).
const (
	FIFO = 1 // fifo scheduling policy
	RR   = 2 // round-robin scheduling policy
)

// DefaultPriority is the realtime priority used by Realtime, somewhere in the lower middle of
// the 1..99 range.
const DefaultPriority = 10
