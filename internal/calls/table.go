// Package calls tracks active 1:1 call sessions so that teardown can be
// fanned out to both parties.
package calls

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSelfCall   = errors.New("calls: caller and callee are the same user")
	ErrCallerBusy = errors.New("calls: caller already in a call")
	ErrCalleeBusy = errors.New("calls: callee already in a call")
)

// Call is one active session between exactly two users.
type Call struct {
	ID        uuid.UUID
	Caller    string
	Callee    string
	StartedAt time.Time
}

// Other returns the peer of user within the call, or "" if user is not a
// party to it.
func (c *Call) Other(user string) string {
	switch user {
	case c.Caller:
		return c.Callee
	case c.Callee:
		return c.Caller
	default:
		return ""
	}
}

// Table maps call IDs to sessions and users to their active call. Each user
// is a party to at most one call at a time; Begin rejects a second
// concurrent call rather than silently overwriting the first.
type Table struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*Call
	byUser map[string]uuid.UUID
}

func NewTable() *Table {
	return &Table{
		byID:   make(map[uuid.UUID]*Call),
		byUser: make(map[string]uuid.UUID),
	}
}

// Begin registers a new call between caller and callee.
func (t *Table) Begin(caller, callee string, now time.Time) (*Call, error) {
	if caller == callee {
		return nil, ErrSelfCall
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, busy := t.byUser[caller]; busy {
		return nil, ErrCallerBusy
	}
	if _, busy := t.byUser[callee]; busy {
		return nil, ErrCalleeBusy
	}

	c := &Call{
		ID:        uuid.New(),
		Caller:    caller,
		Callee:    callee,
		StartedAt: now,
	}
	t.byID[c.ID] = c
	t.byUser[caller] = c.ID
	t.byUser[callee] = c.ID
	return c, nil
}

// Lookup returns the active call user is a party to.
func (t *Table) Lookup(user string) (*Call, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id, ok := t.byUser[user]
	if !ok {
		return nil, false
	}
	return t.byID[id], true
}

// End removes the call user is a party to and returns it so the caller can
// notify both sides. Ending an already-ended call is a no-op.
func (t *Table) End(user string) (*Call, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id, ok := t.byUser[user]
	if !ok {
		return nil, false
	}
	return t.endLocked(id)
}

// EndByID removes the call with the given ID.
func (t *Table) EndByID(id uuid.UUID) (*Call, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endLocked(id)
}

func (t *Table) endLocked(id uuid.UUID) (*Call, bool) {
	c, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	delete(t.byID, id)
	delete(t.byUser, c.Caller)
	delete(t.byUser, c.Callee)
	return c, true
}

// Active returns the number of ongoing calls.
func (t *Table) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byID)
}
