// Package presence tracks which usernames are currently connected and which
// endpoint owns each name.
package presence

import (
	"sort"
	"sync"
)

// Endpoint is a connected client able to receive relay frames. Send must not
// block; it reports false when the frame was dropped (queue full or endpoint
// closed).
type Endpoint interface {
	Send(payload []byte) bool
}

// Directory is the single owner of the username → endpoint map. All access
// goes through its mutex; callers never hold references into the map across
// calls. Joining a name that is already taken replaces the previous owner
// (last writer wins).
type Directory struct {
	mu     sync.Mutex
	byName map[string]Endpoint
}

func NewDirectory() *Directory {
	return &Directory{
		byName: make(map[string]Endpoint),
	}
}

// Join registers ep under name. If the name was already registered the
// previous endpoint is returned so the caller can close it out.
func (d *Directory) Join(name string, ep Endpoint) (prev Endpoint, replaced bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev, replaced = d.byName[name]
	if replaced && prev == ep {
		return nil, false
	}
	d.byName[name] = ep
	return prev, replaced
}

// Resolve returns the endpoint currently owning name.
func (d *Directory) Resolve(name string) (Endpoint, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ep, ok := d.byName[name]
	return ep, ok
}

// Remove unregisters name, but only if ep is still its owner. A stale
// endpoint whose name was taken over by a newer connection must not evict
// the new owner on its way out.
func (d *Directory) Remove(name string, ep Endpoint) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	cur, ok := d.byName[name]
	if !ok || cur != ep {
		return false
	}
	delete(d.byName, name)
	return true
}

// Snapshot returns the currently connected usernames, sorted for stable
// output.
func (d *Directory) Snapshot() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := make([]string, 0, len(d.byName))
	for name := range d.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns a copy of the name → endpoint map. The sender filter for
// all-but-sender broadcasts lives at the caller.
func (d *Directory) Entries() map[string]Endpoint {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string]Endpoint, len(d.byName))
	for name, ep := range d.byName {
		out[name] = ep
	}
	return out
}

func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.byName)
}
