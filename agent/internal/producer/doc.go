// Package producer runs the fixed-rate generation loop.
//
// Each iteration stamps a start time, generates the packet for the current
// tick, and blocks in Queue.Put until there is room. It then sleeps for
// whatever is left of the period. Because the sleep is computed from the
// measured elapsed time rather than fixed, time spent generating or waiting
// on backpressure is absorbed and the long-run rate stays at the target.
//
// The loop never stops on its own: it ends only when Put reports that the
// queue has been closed.
package producer
