package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
)

// AESKeySize is the key size used for every AES-CTR stream in the protocol.
const AESKeySize = 16

// CTR XORs in with the AES-128-CTR keystream for key. The initial counter
// block is the 8-byte big-endian ctr followed by eight zero bytes, so every
// (key, ctr) pair must be used once.
func CTR(key []byte, ctr uint64, in []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	var iv [aes.BlockSize]byte
	binary.BigEndian.PutUint64(iv[:8], ctr)
	out := make([]byte, len(in))
	cipher.NewCTR(block, iv[:]).XORKeyStream(out, in)
	return out, nil
}

// MAC returns HMAC-SHA256(key, parts[0] || parts[1] || ...).
func MAC(key []byte, parts ...[]byte) []byte {
	h := hmac.New(sha256.New, key)
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// CheckMAC recomputes the MAC and compares it in constant time.
func CheckMAC(key, tag []byte, parts ...[]byte) bool {
	return hmac.Equal(MAC(key, parts...), tag)
}
