package ake

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"offrecord/internal/crypto"
	"offrecord/internal/util/memzero"
)

const (
	ssidSize   = 8
	macKeySize = 32
)

// sessionKeys are everything derived from the shared secret s.
type sessionKeys struct {
	ssid    [ssidSize]byte
	c       []byte
	cPrime  []byte
	m1      []byte
	m2      []byte
	m1Prime []byte
	m2Prime []byte
}

// deriveKeys expands s under a distinct label per key so no two keys collide
// even though they share s.
func deriveKeys(s []byte) *sessionKeys {
	k := &sessionKeys{
		c:       expand(s, "OR|ake|c", crypto.AESKeySize),
		cPrime:  expand(s, "OR|ake|c'", crypto.AESKeySize),
		m1:      expand(s, "OR|ake|m1", macKeySize),
		m2:      expand(s, "OR|ake|m2", macKeySize),
		m1Prime: expand(s, "OR|ake|m1'", macKeySize),
		m2Prime: expand(s, "OR|ake|m2'", macKeySize),
	}
	ssid := expand(s, "OR|ake|ssid", ssidSize)
	copy(k.ssid[:], ssid)
	memzero.Zero(ssid)
	return k
}

func expand(secret []byte, label string, n int) []byte {
	r := hkdf.New(sha256.New, secret, nil, []byte(label))
	out := make([]byte, n)
	_, _ = io.ReadFull(r, out)
	return out
}

func (k *sessionKeys) wipe() {
	if k == nil {
		return
	}
	memzero.ZeroAll(k.c, k.cPrime, k.m1, k.m2, k.m1Prime, k.m2Prime, k.ssid[:])
}
