// Package auth provides user accounts backed by SQLite, bcrypt password
// hashing, and JWT session tokens for the signaling upgrade.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

var (
	ErrUserExists         = errors.New("auth: username already taken")
	ErrInvalidCredentials = errors.New("auth: invalid username or password")
	ErrInvalidUsername    = errors.New("auth: invalid username")
	ErrWeakPassword       = errors.New("auth: password too short")
)

// Usernames double as routing addresses on the wire, so keep them to a
// conservative charset.
var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_.-]{2,32}$`)

const minPasswordLen = 8

const schema = `
CREATE TABLE IF NOT EXISTS users (
	username      TEXT PRIMARY KEY,
	password_hash BLOB NOT NULL,
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store persists user accounts in a local SQLite database.
type Store struct {
	db *sql.DB
}

func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open user db: %w", err)
	}
	// SQLite tolerates exactly one writer; the busy timeout absorbs short
	// lock contention from concurrent handlers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// CreateUser registers username with a bcrypt-hashed password.
func (s *Store) CreateUser(ctx context.Context, username, password string) error {
	if !usernameRe.MatchString(username) {
		return ErrInvalidUsername
	}
	if len(password) < minPasswordLen {
		return ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES (?, ?)`,
		username, hash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Authenticate verifies username/password, returning ErrInvalidCredentials
// for both unknown users and wrong passwords so callers cannot probe for
// account existence.
func (s *Store) Authenticate(ctx context.Context, username, password string) error {
	var hash []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE username = ?`, username,
	).Scan(&hash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Burn comparable time so the miss is not observable.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return ErrInvalidCredentials
	case err != nil:
		return fmt.Errorf("query user: %w", err)
	}

	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}

var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("timing-equalizer"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces constraint failures in the error text;
	// the driver does not export a typed error for them.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
