package pipeline

import "sync"

// Token is a one-shot shutdown request shared by everything that may ask the
// pipeline to stop. The first Trip wins and records the reason.
type Token struct {
	once   sync.Once
	mu     sync.Mutex
	reason string
	done   chan struct{}
}

// NewToken returns an untripped Token.
func NewToken() *Token {
	return &Token{done: make(chan struct{})}
}

// Trip requests shutdown. It reports whether this call tripped the token;
// later calls are no-ops and return false.
func (t *Token) Trip(reason string) bool {
	tripped := false
	t.once.Do(func() {
		t.mu.Lock()
		t.reason = reason
		t.mu.Unlock()
		close(t.done)
		tripped = true
	})
	return tripped
}

// Tripped reports whether shutdown has been requested.
func (t *Token) Tripped() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done is closed when the token is tripped.
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// Reason returns the reason given to the first Trip, or "" if untripped.
func (t *Token) Reason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}
