package store

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"offrecord/internal/util/memzero"
)

const envelopeVersion = 1

// Key derivation functions an envelope may name. New files use argon2id;
// scrypt files are still opened.
const (
	kdfArgon2id = "argon2id"
	kdfScrypt   = "scrypt"
)

// ErrWrongPassphrase covers both a bad passphrase and a tampered file.
var ErrWrongPassphrase = errors.New("store: wrong passphrase or corrupted identity")

// envelope is the on-disk JSON holding the ciphertext and KDF parameters.
// For argon2id, N is the time cost, R the memory in KiB and P the lanes.
type envelope struct {
	V      int    `json:"v"`
	KDF    string `json:"kdf"`
	Salt   []byte `json:"salt"`
	Nonce  []byte `json:"nonce"`
	N      int    `json:"n"`
	R      int    `json:"r"`
	P      int    `json:"p"`
	Cipher []byte `json:"cipher"`
}

// encrypt derives a key from passphrase and seals raw. The salt and KDF
// parameters are bound as associated data.
func encrypt(passphrase string, raw []byte, kdf string) ([]byte, error) {
	env := envelope{V: envelopeVersion, KDF: kdf,
		Salt:  make([]byte, 16),
		Nonce: make([]byte, chacha20poly1305.NonceSizeX),
	}
	switch kdf {
	case kdfArgon2id:
		env.N, env.R, env.P = argon2ParamsDefault()
	case kdfScrypt:
		env.N, env.R, env.P = scryptParamsDefault()
	default:
		return nil, fmt.Errorf("store: unknown kdf %q", kdf)
	}
	if _, err := rand.Read(env.Salt); err != nil {
		return nil, err
	}
	if _, err := rand.Read(env.Nonce); err != nil {
		return nil, err
	}
	aead, err := env.aead(passphrase)
	if err != nil {
		return nil, err
	}
	env.Cipher = aead.Seal(nil, env.Nonce, raw, env.ad())
	return json.Marshal(env)
}

// decrypt opens b with a key derived from passphrase.
func decrypt(passphrase string, b []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, err
	}
	if env.V != envelopeVersion {
		return nil, fmt.Errorf("store: unsupported keystore version %d", env.V)
	}
	if len(env.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, ErrWrongPassphrase
	}
	aead, err := env.aead(passphrase)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, env.Nonce, env.Cipher, env.ad())
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}

func (e *envelope) aead(passphrase string) (cipher.AEAD, error) {
	var key []byte
	switch e.KDF {
	case kdfArgon2id:
		if e.N <= 0 || e.R <= 0 || e.P <= 0 || e.P > 255 {
			return nil, fmt.Errorf("store: bad argon2id parameters")
		}
		key = argon2.IDKey([]byte(passphrase), e.Salt, uint32(e.N), uint32(e.R), uint8(e.P), chacha20poly1305.KeySize)
	case kdfScrypt:
		var err error
		key, err = scrypt.Key([]byte(passphrase), e.Salt, e.N, e.R, e.P, chacha20poly1305.KeySize)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("store: unknown kdf %q", e.KDF)
	}
	defer memzero.Zero(key)
	return chacha20poly1305.NewX(key)
}

func (e *envelope) ad() []byte {
	return fmt.Appendf(append([]byte(nil), e.Salt...), "|%d|%s|%d|%d|%d", e.V, e.KDF, e.N, e.R, e.P)
}

// Tunables for key derivation.
func argon2ParamsDefault() (time, memKiB, lanes int) { return 2, 64 * 1024, 4 }

func scryptParamsDefault() (N, r, p int) { return 1 << 15, 8, 1 }
