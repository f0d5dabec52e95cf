package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndAuthenticate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, "alice", "correct horse battery"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := s.Authenticate(ctx, "alice", "correct horse battery"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := s.Authenticate(ctx, "alice", "wrong password!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: err = %v", err)
	}
	if err := s.Authenticate(ctx, "nobody", "whatever123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: err = %v", err)
	}
}

func TestDuplicateUsernameRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, "alice", "password-one"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := s.CreateUser(ctx, "alice", "password-two"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("duplicate: err = %v, want ErrUserExists", err)
	}
}

func TestUsernameAndPasswordValidation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"", "a", "has space", "way-too-long-username-far-beyond-limit", "emoji💥"} {
		if err := s.CreateUser(ctx, name, "long enough password"); !errors.Is(err, ErrInvalidUsername) {
			t.Errorf("username %q: err = %v, want ErrInvalidUsername", name, err)
		}
	}
	if err := s.CreateUser(ctx, "bob", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("weak password: err = %v, want ErrWeakPassword", err)
	}
}
