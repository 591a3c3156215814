// Package crypto exposes the minimal symmetric and signing primitives used by
// offrecord.
//
// Contents
//
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519)
//   - AES-128-CTR keystream application with a counter-derived IV (CTR)
//   - HMAC-SHA256 over concatenated parts with constant-time checking
//     (MAC, CheckMAC)
//   - Public-key fingerprints for display and SMP binding (Fingerprint)
//
// Finite-field Diffie-Hellman lives in the modp subpackage.
//
// # Notes
//
// Callers should treat returned secrets as sensitive and wipe them with
// internal/util/memzero when practical to reduce lifetime in memory.
package crypto
