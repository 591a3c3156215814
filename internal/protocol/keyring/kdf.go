package keyring

import (
	"bytes"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"offrecord/internal/crypto"
	"offrecord/internal/crypto/modp"
	"offrecord/internal/util/memzero"
)

const (
	labelHigh = "OR|send-high"
	labelLow  = "OR|send-low"
)

// pairKeys are the symmetric keys of one (ours, theirs) key pair.
type pairKeys struct {
	sendAES, sendMAC []byte
	recvAES, recvMAC []byte

	sendCtr uint64 // last counter sent
	recvCtr uint64 // last counter accepted
	recvUsed bool
}

// derivePair computes s = theirs^ours and expands it in both directions. The
// side whose public value is larger sends under the "high" label.
func derivePair(gr *modp.Group, ours modp.KeyPair, theirs modp.Element) *pairKeys {
	s := gr.SharedSecret(ours.Private, theirs)
	defer memzero.Zero(s)

	sendLabel, recvLabel := labelLow, labelHigh
	if bytes.Compare(gr.EncodeElement(ours.Public), gr.EncodeElement(theirs)) > 0 {
		sendLabel, recvLabel = labelHigh, labelLow
	}
	k := &pairKeys{
		sendAES: kdf(s, sendLabel),
		recvAES: kdf(s, recvLabel),
	}
	k.sendMAC = macKey(k.sendAES)
	k.recvMAC = macKey(k.recvAES)
	return k
}

func kdf(s []byte, label string) []byte {
	r := hkdf.New(sha256.New, s, nil, []byte(label))
	out := make([]byte, crypto.AESKeySize)
	_, _ = io.ReadFull(r, out)
	return out
}

func macKey(aesKey []byte) []byte {
	sum := sha256.Sum256(aesKey)
	return sum[:]
}

func (k *pairKeys) wipe() {
	memzero.ZeroAll(k.sendAES, k.sendMAC, k.recvAES, k.recvMAC)
}
