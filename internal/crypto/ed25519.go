package crypto

import (
	"crypto/ed25519"
	"crypto/rand"

	"offrecord/internal/domain"
)

// GenerateEd25519 returns a new long-term identity key pair. Its public half
// is what fingerprints and trust records name.
func GenerateEd25519() (priv domain.Ed25519Private, pub domain.Ed25519Public, err error) {
	pk, sk, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return priv, pub, err
	}
	copy(priv[:], sk)
	copy(pub[:], pk)
	return priv, pub, nil
}

// SignEd25519 signs msg with priv. The AKE uses it on the MAC'd digest of
// its reveal and signature messages, binding both DH values, the key id and
// the instance tags to the identity.
func SignEd25519(priv domain.Ed25519Private, msg []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(priv[:]), msg)
}

// VerifyEd25519 reports whether sig is pub's signature over msg. The AKE
// recomputes the digest from its own view of the exchange before checking,
// so a valid signature also proves both sides saw the same keys.
func VerifyEd25519(pub domain.Ed25519Public, msg, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig)
}
