// Package store keeps offrecord's local state on disk.
//
// Files live under the configured home directory and are written through a
// temp file and rename. Every store locks internally.
//
//   - identity.json.enc: the Ed25519 identity, sealed with a passphrase
//     (argon2id or scrypt, then XChaCha20-Poly1305)
//   - accounts.json: per-relay account profiles and instance tags
//   - trust.json: peer fingerprints confirmed by a secret comparison
package store
