package store

import (
	"path/filepath"
	"sync"

	"offrecord/internal/domain"
)

const trustFilename = "trust.json"

// TrustFileStore remembers which peer fingerprints passed a secret
// comparison. A later record for the same peer replaces the earlier one.
type TrustFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewTrustFileStore returns a TrustFileStore rooted at dir.
func NewTrustFileStore(dir string) *TrustFileStore {
	return &TrustFileStore{dir: dir}
}

// SaveTrust writes record, keyed by its peer.
func (s *TrustFileStore) SaveTrust(record domain.TrustRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, trustFilename)
	records := map[domain.Username]domain.TrustRecord{}
	if err := readJSON(path, &records); err != nil {
		return err
	}
	records[record.Peer] = record
	return writeJSON(path, records, 0o600)
}

// LoadTrust returns the record for peer, if any.
func (s *TrustFileStore) LoadTrust(peer domain.Username) (domain.TrustRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := map[domain.Username]domain.TrustRecord{}
	if err := readJSON(filepath.Join(s.dir, trustFilename), &records); err != nil {
		return domain.TrustRecord{}, false, err
	}
	rec, ok := records[peer]
	return rec, ok, nil
}

// ListTrust returns every stored record.
func (s *TrustFileStore) ListTrust() ([]domain.TrustRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := map[domain.Username]domain.TrustRecord{}
	if err := readJSON(filepath.Join(s.dir, trustFilename), &records); err != nil {
		return nil, err
	}
	out := make([]domain.TrustRecord, 0, len(records))
	for _, r := range records {
		out = append(out, r)
	}
	return out, nil
}

var _ domain.TrustStore = (*TrustFileStore)(nil)
