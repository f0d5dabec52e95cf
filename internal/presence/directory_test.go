package presence

import (
	"reflect"
	"testing"
)

type fakeEndpoint struct {
	sent [][]byte
}

func (e *fakeEndpoint) Send(payload []byte) bool {
	e.sent = append(e.sent, payload)
	return true
}

func TestJoinResolveRemove(t *testing.T) {
	d := NewDirectory()
	alice := &fakeEndpoint{}

	if prev, replaced := d.Join("alice", alice); replaced {
		t.Fatalf("fresh join reported replacement of %v", prev)
	}

	got, ok := d.Resolve("alice")
	if !ok || got != Endpoint(alice) {
		t.Fatalf("Resolve(alice) = %v, %v", got, ok)
	}

	if !d.Remove("alice", alice) {
		t.Fatalf("Remove by owner failed")
	}
	if _, ok := d.Resolve("alice"); ok {
		t.Fatalf("alice still resolvable after removal")
	}
}

func TestDuplicateJoinLastWriterWins(t *testing.T) {
	d := NewDirectory()
	first := &fakeEndpoint{}
	second := &fakeEndpoint{}

	d.Join("alice", first)
	prev, replaced := d.Join("alice", second)
	if !replaced || prev != Endpoint(first) {
		t.Fatalf("expected second join to replace first, got prev=%v replaced=%v", prev, replaced)
	}

	got, _ := d.Resolve("alice")
	if got != Endpoint(second) {
		t.Fatalf("alice resolves to stale endpoint")
	}

	// The evicted connection exiting must not remove the new owner.
	if d.Remove("alice", first) {
		t.Fatalf("stale endpoint evicted the new owner")
	}
	if _, ok := d.Resolve("alice"); !ok {
		t.Fatalf("new owner lost after stale removal attempt")
	}
}

func TestSnapshotSorted(t *testing.T) {
	d := NewDirectory()
	d.Join("carol", &fakeEndpoint{})
	d.Join("alice", &fakeEndpoint{})
	d.Join("bob", &fakeEndpoint{})

	want := []string{"alice", "bob", "carol"}
	if got := d.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Snapshot() = %v, want %v", got, want)
	}
}

func TestEmptyAfterAllRemoved(t *testing.T) {
	d := NewDirectory()
	alice := &fakeEndpoint{}
	bob := &fakeEndpoint{}
	d.Join("alice", alice)
	d.Join("bob", bob)

	d.Remove("alice", alice)
	d.Remove("bob", bob)

	if d.Len() != 0 {
		t.Fatalf("Len() = %d after removing everyone", d.Len())
	}
	if got := d.Snapshot(); len(got) != 0 {
		t.Fatalf("Snapshot() = %v, want empty", got)
	}
}
