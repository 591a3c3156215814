package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"offrecord/internal/domain"
)

// Fingerprint returns the hex SHA-256 of a long-term public key.
func Fingerprint(pub domain.Ed25519Public) domain.Fingerprint {
	sum := FingerprintBytes(pub)
	return domain.Fingerprint(hex.EncodeToString(sum[:]))
}

// FingerprintBytes returns the raw SHA-256 of a long-term public key.
func FingerprintBytes(pub domain.Ed25519Public) [sha256.Size]byte {
	return sha256.Sum256(pub[:])
}
