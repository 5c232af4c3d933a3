// Package token implements a one-shot cancellable token used to schedule and
// later cancel delayed SEND operations.
package token

import "sync"

type state int

const (
	stateActive state = iota
	stateCancelled
	stateCompleted
)

// CallbackHandle identifies a registered cancel callback so it can later be
// removed with RemoveCallback. Go funcs are not comparable, so OnCancel
// returns a handle rather than requiring callers to pass the func back in.
type CallbackHandle uint64

// Token is a one-shot {active, cancelled, completed} state machine with
// cancel-callbacks. It is safe for concurrent use: state transitions happen
// under a mutex, and registered callbacks are invoked outside the critical
// section.
type Token struct {
	mu        sync.Mutex
	st        state
	callbacks []callbackEntry
	nextID    CallbackHandle
}

type callbackEntry struct {
	id CallbackHandle
	cb func()
}

// New returns a Token in the active state.
func New() *Token {
	return &Token{}
}

// OnCancel registers cb to run when the token transitions to cancelled. If
// the token is already cancelled, cb runs immediately (synchronously, on the
// caller's goroutine). If the token is already completed, cb is dropped —
// only the cancellation path fires callbacks, never completion.
func (t *Token) OnCancel(cb func()) CallbackHandle {
	t.mu.Lock()
	switch t.st {
	case stateActive:
		t.nextID++
		id := t.nextID
		t.callbacks = append(t.callbacks, callbackEntry{id: id, cb: cb})
		t.mu.Unlock()
		return id
	case stateCancelled:
		t.mu.Unlock()
		cb()
		return 0
	default: // stateCompleted
		t.mu.Unlock()
		return 0
	}
}

// RemoveCallback removes a previously registered callback. It is a no-op if
// the handle is unknown (already fired, already removed, or zero).
func (t *Token) RemoveCallback(h CallbackHandle) {
	if h == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, entry := range t.callbacks {
		if entry.id == h {
			t.callbacks = append(t.callbacks[:i], t.callbacks[i+1:]...)
			return
		}
	}
}

// Cancel transitions the token to cancelled and fires every registered
// callback exactly once, in registration order. A no-op if the token is
// already terminal.
func (t *Token) Cancel() {
	t.mu.Lock()
	if t.st != stateActive {
		t.mu.Unlock()
		return
	}
	t.st = stateCancelled
	callbacks := t.callbacks
	t.callbacks = nil
	t.mu.Unlock()

	for _, entry := range callbacks {
		entry.cb()
	}
}

// Complete transitions the token to completed. A no-op if the token is
// already terminal. No callbacks are invoked.
func (t *Token) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.st != stateActive {
		return
	}
	t.st = stateCompleted
}

// IsActive reports whether the token is still in the active state.
func (t *Token) IsActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st == stateActive
}

// IsCancelled reports whether the token has been cancelled.
func (t *Token) IsCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st == stateCancelled
}

// IsCompleted reports whether the token has completed.
func (t *Token) IsCompleted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st == stateCompleted
}
