package interfaces

import domaintypes "offrecord/internal/domain/types"

// IdentityStore persists your long-term identity keys.
type IdentityStore interface {
	SaveIdentity(passphrase string, id domaintypes.Identity) error
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
}

// TrustStore remembers which peer fingerprints passed a secret comparison.
type TrustStore interface {
	SaveTrust(record domaintypes.TrustRecord) error
	LoadTrust(peer domaintypes.Username) (domaintypes.TrustRecord, bool, error)
}
