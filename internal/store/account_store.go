package store

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"offrecord/internal/domain"
)

const accountsFile = "accounts.json"

// AccountFileStore persists per-relay account profiles, including the
// instance tag a client keeps across runs.
type AccountFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewAccountFileStore returns an AccountFileStore rooted at dir.
func NewAccountFileStore(dir string) *AccountFileStore {
	return &AccountFileStore{dir: dir}
}

// SaveAccountProfile stores or updates the given profile.
func (s *AccountFileStore) SaveAccountProfile(profile domain.AccountProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !profile.InstanceTag.Valid() {
		return fmt.Errorf("store: account %s has invalid instance tag 0x%x: %w",
			profile.Username, uint32(profile.InstanceTag), domain.ErrMisuse)
	}
	path := filepath.Join(s.dir, accountsFile)
	profiles := make(map[string]domain.AccountProfile)
	if err := readJSON(path, &profiles); err != nil {
		return err
	}
	profiles[accountKey(profile.ServerURL, profile.Username)] = profile
	return writeJSON(path, profiles, 0o600)
}

// LoadAccountProfile retrieves a profile for (serverURL, username).
func (s *AccountFileStore) LoadAccountProfile(
	serverURL string,
	username domain.Username,
) (domain.AccountProfile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, accountsFile)
	profiles := make(map[string]domain.AccountProfile)
	if err := readJSON(path, &profiles); err != nil {
		return domain.AccountProfile{}, false, err
	}
	profile, ok := profiles[accountKey(serverURL, username)]
	return profile, ok, nil
}

// accountKey ignores a trailing slash on the relay URL, as the relay client
// does.
func accountKey(serverURL string, username domain.Username) string {
	return strings.TrimRight(serverURL, "/") + "|" + username.String()
}

var _ domain.AccountStore = (*AccountFileStore)(nil)
