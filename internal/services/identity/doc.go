// Package identity manages creation, encryption and loading of the local
// identity.
//
// It enforces passphrase policy, generates the long-term Ed25519 key pair the
// AKE signs with, and persists it via the domain.IdentityStore.
package identity
