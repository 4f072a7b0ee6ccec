// Package credential stores IMAP passwords in the system keyring.
package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

// ErrNotFound reports that no password is stored for an account.
var ErrNotFound = errors.New("no password stored")

// Store reads and writes passwords in one keyring service.
type Store struct {
	ring keyring.Keyring
}

// Open opens the keyring for service. fileDir is used by the encrypted
// file backend when no system keyring is available.
func Open(service, fileDir string) (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.TerminalPrompt,
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return &Store{ring: ring}, nil
}

// New wraps an already opened keyring.
func New(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Key returns the keyring key for an IMAP account.
func Key(user, host string) string {
	return "imap:" + user + "@" + host
}

// Password returns the stored password for user at host, or an error
// wrapping ErrNotFound.
func (s *Store) Password(user, host string) (string, error) {
	item, err := s.ring.Get(Key(user, host))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("%s@%s: %w (store one with set-password)", user, host, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get password for %s@%s: %w", user, host, err)
	}
	return string(item.Data), nil
}

// SetPassword stores password for user at host, replacing any previous one.
func (s *Store) SetPassword(user, host, password string) error {
	err := s.ring.Set(keyring.Item{
		Key:         Key(user, host),
		Data:        []byte(password),
		Label:       "labelsync IMAP password for " + user + "@" + host,
		Description: "IMAP password",
	})
	if err != nil {
		return fmt.Errorf("set password for %s@%s: %w", user, host, err)
	}
	return nil
}

// DeletePassword removes the password for user at host. Removing an absent
// password is not an error.
func (s *Store) DeletePassword(user, host string) error {
	err := s.ring.Remove(Key(user, host))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("delete password for %s@%s: %w", user, host, err)
	}
	return nil
}
