// Package state keeps the token record in a bbolt database for
// deployments that prefer a single-file database over a JSON document.
package state

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// stateDirPerm is the permission mode for the database directory.
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

var (
	spotifyBucket = []byte("spotify")
	tokenKey      = []byte("token")
)

// State wraps a bbolt database holding the serialized token record.
type State struct {
	db   *bolt.DB
	path string
}

// Open opens the database at path, creating it and its parent directory
// if they do not exist.
func Open(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(spotifyBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db, path: path}, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *State) Path() string {
	return s.path
}

// ReadToken returns the stored token document, or nil if none is stored.
// The returned slice is a copy and stays valid after the transaction.
func (s *State) ReadToken() ([]byte, error) {
	var data []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(spotifyBucket).Get(tokenKey)
		if v != nil {
			data = append([]byte(nil), v...)
		}

		return nil
	})

	return data, err
}

// WriteToken replaces the stored token document.
func (s *State) WriteToken(data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(spotifyBucket).Put(tokenKey, data)
	})
}

// DeleteToken removes the stored token document. Deleting a missing
// document is not an error.
func (s *State) DeleteToken() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(spotifyBucket).Delete(tokenKey)
	})
}
