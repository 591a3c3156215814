package modp

// KeyPair is an ephemeral DH key pair.
type KeyPair struct {
	Private Exponent
	Public  Element
}

// GenerateKey returns a fresh key pair.
func (gr *Group) GenerateKey() KeyPair {
	x := gr.RandomExponent()
	return KeyPair{Private: x, Public: gr.Base(x)}
}

// SharedSecret computes peer^priv and returns its fixed-width encoding.
func (gr *Group) SharedSecret(priv Exponent, peer Element) []byte {
	return gr.EncodeElement(gr.Exp(peer, priv))
}

// Wipe clears the private half.
func (k *KeyPair) Wipe() {
	if k.Private != nil {
		k.Private.Zero()
	}
	k.Private = nil
}
