package identity

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"offrecord/internal/crypto"
	"offrecord/internal/domain"
)

const minPassphraseLength = 12

// ErrWeakPassphrase is wrapped with the list of unmet requirements.
var ErrWeakPassphrase = fmt.Errorf("identity: weak passphrase: %w", domain.ErrMisuse)

// Service manages the identity key through a backing store.
type Service struct {
	store domain.IdentityStore
}

// New returns an identity service backed by the given store.
func New(s domain.IdentityStore) *Service { return &Service{store: s} }

// GenerateIdentity creates a new signing identity, saves it encrypted with
// the passphrase, and returns it with its fingerprint.
func (s *Service) GenerateIdentity(
	passphrase string,
) (domain.Identity, domain.Fingerprint, error) {
	if err := checkPassphrase(passphrase); err != nil {
		return domain.Identity{}, "", err
	}
	priv, pub, err := crypto.GenerateEd25519()
	if err != nil {
		return domain.Identity{}, "", err
	}
	id := domain.Identity{EdPub: pub, EdPriv: priv}
	if err := s.store.SaveIdentity(passphrase, id); err != nil {
		return domain.Identity{}, "", err
	}
	return id, crypto.Fingerprint(pub), nil
}

// LoadIdentity decrypts and returns the local identity.
func (s *Service) LoadIdentity(passphrase string) (domain.Identity, error) {
	return s.store.LoadIdentity(passphrase)
}

// FingerprintIdentity returns the fingerprint the peer sees for us.
func (s *Service) FingerprintIdentity(passphrase string) (domain.Fingerprint, error) {
	id, err := s.store.LoadIdentity(passphrase)
	if err != nil {
		return "", err
	}
	return crypto.Fingerprint(id.EdPub), nil
}

// checkPassphrase reports which character classes are missing, if any.
func checkPassphrase(passphrase string) error {
	var missing []string
	if n := utf8.RuneCountInString(passphrase); n < minPassphraseLength {
		missing = append(missing, fmt.Sprintf("%d more characters", minPassphraseLength-n))
	}
	classes := []struct {
		name string
		in   func(rune) bool
	}{
		{"an upper-case letter", unicode.IsUpper},
		{"a lower-case letter", unicode.IsLower},
		{"a digit", unicode.IsDigit},
		{"a symbol", func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSymbol(r) }},
	}
	for _, c := range classes {
		if strings.IndexFunc(passphrase, c.in) < 0 {
			missing = append(missing, c.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w; needs %s", ErrWeakPassphrase, strings.Join(missing, ", "))
	}
	return nil
}

var _ domain.IdentityService = (*Service)(nil)
