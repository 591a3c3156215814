// Package modp is the finite-field Diffie-Hellman engine used by the AKE and
// SMP protocols.
//
// It fixes a single group, the RFC 3526 1536-bit MODP prime with generator 2,
// and works in its prime-order subgroup of order q = (p-1)/2. Exponents are
// kyber scalars reduced mod q; group elements are kyber points of a
// nist.ResidueGroup.
//
// # Encoding
//
// Elements encode to fixed-width big-endian bytes (ElementSize) and decoding
// rejects anything outside the order-q subgroup, so a peer cannot push us into
// a small subgroup or hand us the identity. Exponents encode to ExponentSize
// bytes and must be below q.
//
// The package holds no protocol state and is safe for concurrent use.
package modp
