package state

import (
	"strconv"
	"sync"

	"github.com/avbezrukov/linechat/history"
)

// Roster is the process-wide set of active sessions. It owns the room
// history buffer and the default-name counter, and provides the broadcast
// primitives every chat handler is built on. A single mutex guards all of
// it, which is this implementation's rendering of "a single serialized
// control path": every mutation to roster membership, room history, or the
// name counter happens while holding mu, matching the teacher's
// mutex-guarded InMemorySessionManager.
type Roster struct {
	mu          sync.RWMutex
	byName      map[string]*Session
	order       []*Session
	roomHistory *history.Buffer[string]
	nameCounter int
	namePrefix  string
}

// NewRoster creates an empty Roster. historySize is the capacity of the room
// history buffer; namePrefix is used to mint default names (Anonymous_1,
// Anonymous_2, ...).
func NewRoster(historySize int, namePrefix string) *Roster {
	return &Roster{
		byName:      make(map[string]*Session),
		roomHistory: history.New[string](historySize),
		namePrefix:  namePrefix,
	}
}

// NextDefaultName mints the next monotonic default name
// ("<namePrefix>_<N>"), incrementing the roster's name counter.
func (r *Roster) NextDefaultName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nameCounter++
	return defaultName(r.namePrefix, r.nameCounter)
}

func defaultName(prefix string, n int) string {
	return prefix + "_" + strconv.Itoa(n)
}

// Add inserts sess into the roster under its current name. The caller must
// already have set sess's name (and validated it against NameAvailable)
// before calling Add.
func (r *Roster) Add(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[sess.Name()] = sess
	r.order = append(r.order, sess)
}

// Remove takes sess out of the roster.
func (r *Roster) Remove(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byName, sess.Name())
	for i, s := range r.order {
		if s == sess {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Rename moves sess from its old name to newName in the index. The caller is
// responsible for having validated newName's availability and for calling
// sess.SetName; both INTRODUCE and RENAME call it right after this call.
func (r *Roster) Rename(sess *Session, oldName, newName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byName, oldName)
	r.byName[newName] = sess
}

// NameAvailable reports whether name is free (case-sensitive, matching the
// distilled spec's checkName rule) across the live roster.
func (r *Roster) NameAvailable(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, taken := r.byName[name]
	return !taken
}

// Lookup finds a session by its current display name.
func (r *Roster) Lookup(name string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[name]
	return s, ok
}

// Names returns every current display name, in join order.
func (r *Roster) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	for i, s := range r.order {
		out[i] = s.Name()
	}
	return out
}

// All returns every live session, in join order. Callers must not retain the
// slice across a call that mutates the roster.
func (r *Roster) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, len(r.order))
	copy(out, r.order)
	return out
}

// RoomHistorySnapshot returns the room's bounded public-message history,
// oldest first.
func (r *Roster) RoomHistorySnapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roomHistory.Snapshot()
}

// AppendRoomHistory appends an already-formatted line to the room history
// buffer. Only SENDs without a recipient (broadcasts) ever call this —
// whispers never touch room history.
func (r *Roster) AppendRoomHistory(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roomHistory.Add(line)
}

// Broadcast sends line to every session in the roster via send, except any
// session for which except returns true. send is typically a wrapper around
// (*Session).SendRaw that logs the per-session write error itself.
func (r *Roster) Broadcast(line string, except func(*Session) bool, send func(*Session, string)) {
	for _, sess := range r.All() {
		if except != nil && except(sess) {
			continue
		}
		send(sess, line)
	}
}

// Len returns the number of sessions currently in the roster.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
