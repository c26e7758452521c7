// Package state persists dexcom-sync's durable state: the OAuth token
// envelope (encrypted at rest) and the poller's progress cursor.
package state

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/alexjbarnes/dexcom-sync/internal/dexcom"
)

const (
	// stateDirPerm is the permission mode for the state directory (~/.dexcom-sync/).
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

var (
	appBucket = []byte("app")
	tokenKey  = []byte("token_envelope")
	cursorKey = []byte("poll_cursor")
)

// Store wraps a bbolt database for all persistent application state.
// The token envelope is sealed with the passphrase before it reaches
// disk; everything else is stored in the clear.
type Store struct {
	db         *bolt.DB
	passphrase string
}

// Load opens the state database at ~/.dexcom-sync/state.db, creating it
// if it does not exist.
func Load(passphrase string) (*Store, error) {
	path, err := dbPath()
	if err != nil {
		return nil, err
	}

	return LoadAt(path, passphrase)
}

// LoadAt opens a state database at the given path, creating it if it
// does not exist. Useful for tests that need an isolated database.
func LoadAt(path, passphrase string) (*Store, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("state passphrase is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(appBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &Store{db: db, passphrase: passphrase}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// TokenEnvelope returns the stored token envelope, or nil when none has
// been saved yet. Decryption failure (typically a wrong passphrase) is
// an error, not an absent envelope.
func (s *Store) TokenEnvelope() (*dexcom.TokenEnvelope, error) {
	var sealed []byte

	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(appBucket).Get(tokenKey)
		if v != nil {
			sealed = make([]byte, len(v))
			copy(sealed, v)
		}

		return nil
	})

	if sealed == nil {
		return nil, nil
	}

	plaintext, err := open(s.passphrase, sealed)
	if err != nil {
		return nil, fmt.Errorf("unsealing token envelope: %w", err)
	}

	env := &dexcom.TokenEnvelope{}
	if err := json.Unmarshal(plaintext, env); err != nil {
		return nil, fmt.Errorf("decoding token envelope: %w", err)
	}

	return env, nil
}

// SetTokenEnvelope seals and persists the token envelope.
func (s *Store) SetTokenEnvelope(env dexcom.TokenEnvelope) error {
	plaintext, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding token envelope: %w", err)
	}

	sealed, err := seal(s.passphrase, plaintext)
	if err != nil {
		return fmt.Errorf("sealing token envelope: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(appBucket).Put(tokenKey, sealed)
	})
}

// ClearTokenEnvelope removes the stored token envelope, forcing a fresh
// login.
func (s *Store) ClearTokenEnvelope() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(appBucket).Delete(tokenKey)
	})
}

// PollCursor returns the epoch-millisecond instant up to which glucose
// values have been fetched, or 0 when the poller has never run.
func (s *Store) PollCursor() (int64, error) {
	var raw []byte

	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(appBucket).Get(cursorKey)
		if v != nil {
			raw = make([]byte, len(v))
			copy(raw, v)
		}

		return nil
	})

	if raw == nil {
		return 0, nil
	}

	cursor, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decoding poll cursor: %w", err)
	}

	return cursor, nil
}

// SetPollCursor persists the poller's progress cursor.
func (s *Store) SetPollCursor(ms int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(appBucket).Put(cursorKey, []byte(strconv.FormatInt(ms, 10)))
	})
}

func dbPath() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		// Fail rather than silently writing to the current directory
		// where the database (containing sealed credentials) might end
		// up with wrong permissions or inside a source-controlled tree.
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(dir, ".dexcom-sync", "state.db"), nil
}
