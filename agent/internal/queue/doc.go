// Package queue provides Bounded, the fixed-capacity FIFO that decouples the
// producer from the consumer.
//
// Put blocks while the queue is full; Take blocks while it is empty. Close
// flips a one-way switch that wakes every blocked caller: Put then fails
// fast, while Take keeps returning buffered items until the queue is empty
// and only then reports closed. Closing therefore never discards data that
// was already accepted.
package queue
