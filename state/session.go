// Package state holds the chat engine's shared mutable state: per-connection
// Sessions and the process-wide Roster that tracks them.
package state

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avbezrukov/linechat/history"
	"github.com/avbezrukov/linechat/token"
)

// Session is the mutable record for one live connection. Every field is
// guarded by mu except writer itself, which is guarded separately by writeMu
// so that a broadcast from another session's handler goroutine, a delayed
// SEND firing on its own timer goroutine, and this session's own connection
// loop can all write to the same socket without interleaving bytes.
type Session struct {
	id   uuid.UUID
	peer string

	writeMu sync.Mutex
	writer  io.Writer

	mu              sync.Mutex
	name            string
	personalHistory *history.Buffer[string]
	pendingDelays   []*token.Token
	reporters       map[*Session]struct{}
	banUntil        time.Time
	spamWindowEnd   time.Time
	spamCount       int
	closed          bool
}

// NewSession creates a Session with an empty personal history of the given
// capacity. The caller (chat.Service.Join) is responsible for assigning the
// session's initial default name before adding it to the roster.
func NewSession(peer string, writer io.Writer, historySize int) *Session {
	return &Session{
		id:              uuid.New(),
		peer:            peer,
		writer:          writer,
		personalHistory: history.New[string](historySize),
		reporters:       make(map[*Session]struct{}),
	}
}

// ID returns the session's process-local log-correlation identifier. It is
// never written to the wire.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Peer returns the opaque display string (address + port) used in logs.
func (s *Session) Peer() string {
	return s.peer
}

// String implements fmt.Stringer for log lines, mirroring the "{peer} ->
// name" shape the original implementation logged.
func (s *Session) String() string {
	return fmt.Sprintf("%s -> %s", s.peer, s.Name())
}

// Name returns the session's current display name.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// SetName overwrites the session's display name. Callers must have already
// validated uniqueness against the roster; Session itself enforces nothing
// about naming rules.
func (s *Session) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

// SendRaw writes line followed by a single newline to the session's writer.
// It is the only method in this package that touches the wire; all
// timestamp/system-block formatting happens in the chat package.
func (s *Session) SendRaw(line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := io.WriteString(s.writer, line+"\n")
	return err
}

// AddToPersonalHistory appends line (already formatted, including timestamp
// if applicable) to the session's bounded personal history.
func (s *Session) AddToPersonalHistory(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.personalHistory.Add(line)
}

// SeedPersonalHistory appends each line in order, used once at join time to
// copy the room history snapshot into a fresh session.
func (s *Session) SeedPersonalHistory(lines []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range lines {
		s.personalHistory.Add(l)
	}
}

// PersonalHistory returns a snapshot of the session's personal history,
// oldest first.
func (s *Session) PersonalHistory() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.personalHistory.Snapshot()
}

// PushDelay pushes a newly scheduled delayed-SEND token onto the session's
// pending-delays stack.
func (s *Session) PushDelay(tok *token.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingDelays = append(s.pendingDelays, tok)
}

// PopDelay pops the most recently scheduled pending delay (LIFO), used by
// CANCEL. Returns false if there are none.
func (s *Session) PopDelay() (*token.Token, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.pendingDelays)
	if n == 0 {
		return nil, false
	}
	tok := s.pendingDelays[n-1]
	s.pendingDelays = s.pendingDelays[:n-1]
	return tok, true
}

// RemoveDelay removes a specific token from the pending-delays stack (used
// when a delayed SEND fires on its own, rather than via CANCEL). A no-op if
// the token isn't present.
func (s *Session) RemoveDelay(tok *token.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.pendingDelays {
		if t == tok {
			s.pendingDelays = append(s.pendingDelays[:i], s.pendingDelays[i+1:]...)
			return
		}
	}
}

// DrainDelays removes and returns every pending delay token, used at
// teardown so each can be cancelled.
func (s *Session) DrainDelays() []*token.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	toks := s.pendingDelays
	s.pendingDelays = nil
	return toks
}

// AddReporter records that reporter has reported this session. Returns false
// if reporter had already reported this session (the report is a no-op), or
// true if this is a new report.
func (s *Session) AddReporter(reporter *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reporters[reporter]; ok {
		return false
	}
	s.reporters[reporter] = struct{}{}
	return true
}

// HasReporter reports whether reporter has already reported this session.
func (s *Session) HasReporter(reporter *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.reporters[reporter]
	return ok
}

// ReportCount returns the number of distinct sessions that have reported
// this session.
func (s *Session) ReportCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reporters)
}

// ClearReporters empties the reporters set, called when a ban is applied.
func (s *Session) ClearReporters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reporters = make(map[*Session]struct{})
}

// RemoveReporter removes reporter from target's reporters set, called at
// teardown so a departed user's votes can't keep counting toward a future
// ban.
func RemoveReporter(target, reporter *Session) {
	target.mu.Lock()
	defer target.mu.Unlock()
	delete(target.reporters, reporter)
}

// Ban sets the session's ban expiry to until.
func (s *Session) Ban(until time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banUntil = until
}

// BanUntil reports whether the session is currently banned and, if so,
// until when.
func (s *Session) BanUntil(now time.Time) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.banUntil.IsZero() || !s.banUntil.After(now) {
		return time.Time{}, false
	}
	return s.banUntil, true
}

// IncrementSpamAndCheck implements the spam-window bookkeeping: if now is
// strictly past the current window end, the window resets; the counter is
// incremented unconditionally (even the message that trips the limit is
// counted, preserved intentionally — see SPEC_FULL.md §9); the return value
// reports whether this send exceeds the limit and, if so, when the window
// that caused the rejection ends.
func (s *Session) IncrementSpamAndCheck(now time.Time, limit int, period time.Duration) (rejected bool, windowEnd time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.spamWindowEnd.IsZero() || now.After(s.spamWindowEnd) {
		s.spamCount = 0
		s.spamWindowEnd = now.Add(period)
	}

	s.spamCount++
	return s.spamCount > limit, s.spamWindowEnd
}

// MarkClosed records that the session's connection has been torn down. Once
// closed, no further writes should be attempted against it.
func (s *Session) MarkClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Closed reports whether the session has already been torn down.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
