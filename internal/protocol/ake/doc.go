// Package ake implements the authenticated Diffie-Hellman key exchange that
// opens an encrypted conversation.
//
// # Flow
//
// Initiator                                   Responder
//
//	DH-Commit   AES_r(g^x), SHA256(g^x)   ->
//	                                      <-   DH-Key        g^y
//	Reveal-Sig  r, AES_c(X_B), MAC_m2     ->
//	                                      <-   Signature     AES_c'(X_A), MAC_m2'
//
// The initiator commits to g^x before seeing g^y so the responder cannot
// pick y adaptively. Both sides derive s = g^(xy) and from it, with HKDF
// labels, the session id and the keys c, c', m1, m1', m2, m2'. X_B and X_A
// each carry a long-term Ed25519 public key, the DH key id and a signature
// over a MAC of both DH values, that key, the key id and the instance tags.
//
// # Failures
//
// A MAC, commitment or signature failure, or a message that does not fit the
// current state, wipes all ephemeral material and returns the engine to
// StateNone. The returned error wraps domain.ErrCryptoVerification or
// domain.ErrProtocolViolation. Either side may start again at once.
//
// Concurrency: Engine is NOT safe for concurrent use.
package ake
