package ake

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"io"

	"offrecord/internal/crypto"
	"offrecord/internal/crypto/modp"
	"offrecord/internal/domain"
	"offrecord/internal/protocol/wire"
	"offrecord/internal/util/memzero"
)

// State is the handshake state.
type State int

const (
	StateNone State = iota
	StateAwaitingDHKey
	StateAwaitingRevealSig
	StateAwaitingSig
	StateDone
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateAwaitingDHKey:
		return "AWAITING_DHKEY"
	case StateAwaitingRevealSig:
		return "AWAITING_REVEALSIG"
	case StateAwaitingSig:
		return "AWAITING_SIG"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// OurKeyID is the key id both sides give their AKE DH key.
const OurKeyID uint32 = 1

var (
	ErrUnexpectedMessage = fmt.Errorf("ake: unexpected message: %w", domain.ErrProtocolViolation)
	ErrMalformed         = fmt.Errorf("ake: malformed message: %w", domain.ErrProtocolViolation)
	ErrBadCommitment     = fmt.Errorf("ake: revealed value does not match commitment: %w", domain.ErrCryptoVerification)
	ErrBadMAC            = fmt.Errorf("ake: MAC mismatch: %w", domain.ErrCryptoVerification)
	ErrBadSignature      = fmt.Errorf("ake: signature verification failed: %w", domain.ErrCryptoVerification)
)

// Config carries what an Engine needs from its owner.
type Config struct {
	Identity    domain.Identity
	InstanceTag domain.InstanceTag
	Group       *modp.Group
	// Rand supplies the commitment key r. Nil means crypto/rand.
	Rand io.Reader
}

// Result is the outcome of a completed handshake. OurKey is handed over to the
// caller, which becomes responsible for wiping it.
type Result struct {
	SSID            [ssidSize]byte
	Initiator       bool
	OurKeyID        uint32
	OurKey          modp.KeyPair
	TheirKeyID      uint32
	TheirPublic     modp.Element
	PeerPublicKey   domain.Ed25519Public
	PeerFingerprint domain.Fingerprint
}

// signedKey is the plaintext of the encrypted signature blobs.
type signedKey struct {
	Pub   []byte `cbor:"1,keyasint"`
	KeyID uint32 `cbor:"2,keyasint"`
	Sig   []byte `cbor:"3,keyasint"`
}

// Engine runs one side of the handshake.
type Engine struct {
	cfg   Config
	state State

	our      modp.KeyPair
	ourBytes []byte

	// Initiator only: the commitment we sent.
	r      []byte
	commit *wire.DHCommit

	// Responder only: the commitment we received.
	theirEncGx  []byte
	theirHashGx []byte

	theirPub   modp.Element
	theirBytes []byte

	keys          *sessionKeys
	lastRevealSig *wire.RevealSignature
}

// New returns an engine in StateNone.
func New(cfg Config) *Engine {
	if cfg.Group == nil {
		cfg.Group = modp.Default()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Reader
	}
	return &Engine{cfg: cfg}
}

// State returns the current handshake state.
func (e *Engine) State() State { return e.state }

// Initiate discards any handshake in progress and returns a fresh DH-Commit.
func (e *Engine) Initiate() (*wire.DHCommit, error) {
	e.reset()
	e.newKey()

	e.r = make([]byte, crypto.AESKeySize)
	if _, err := io.ReadFull(e.cfg.Rand, e.r); err != nil {
		e.reset()
		return nil, err
	}
	enc, err := crypto.CTR(e.r, 0, e.ourBytes)
	if err != nil {
		e.reset()
		return nil, err
	}
	sum := sha256.Sum256(e.ourBytes)
	e.commit = &wire.DHCommit{EncryptedGx: enc, HashedGx: sum[:]}
	e.state = StateAwaitingDHKey
	return e.commit, nil
}

// Abort wipes all ephemeral material and returns to StateNone.
func (e *Engine) Abort() { e.reset() }

// Handle processes one AKE message from the peer identified by theirTag. It
// returns the reply to send (possibly nil) and, once the handshake is
// complete, its Result.
func (e *Engine) Handle(theirTag domain.InstanceTag, msg wire.Message) (wire.Message, *Result, error) {
	var (
		reply wire.Message
		res   *Result
		err   error
	)
	switch m := msg.(type) {
	case *wire.DHCommit:
		reply, err = e.handleDHCommit(m)
	case *wire.DHKey:
		reply, err = e.handleDHKey(theirTag, m)
	case *wire.RevealSignature:
		reply, res, err = e.handleRevealSignature(theirTag, m)
	case *wire.Signature:
		res, err = e.handleSignature(theirTag, m)
	case *wire.Query, *wire.Data:
		return nil, nil, fmt.Errorf("%w: %s is not an AKE message", ErrUnexpectedMessage, msg.Tag())
	default:
		return nil, nil, fmt.Errorf("%w: %T", ErrUnexpectedMessage, msg)
	}
	if err != nil {
		// A stray message after completion does not undo the finished
		// handshake; there is nothing left to abort.
		if e.state != StateDone {
			e.reset()
		}
		return nil, nil, err
	}
	return reply, res, nil
}

func (e *Engine) handleDHCommit(m *wire.DHCommit) (wire.Message, error) {
	if len(m.HashedGx) != sha256.Size || len(m.EncryptedGx) != modp.ElementSize {
		return nil, ErrMalformed
	}
	switch e.state {
	case StateNone, StateDone:
		e.reset()
		return e.respond(m), nil

	case StateAwaitingDHKey:
		// Both sides sent DH-Commit. The larger hash keeps its role.
		if bytes.Compare(e.commit.HashedGx, m.HashedGx) > 0 {
			return e.commit, nil
		}
		e.reset()
		return e.respond(m), nil

	case StateAwaitingRevealSig:
		// Peer restarted; keep our y so the DH-Key we resend is unchanged.
		e.theirEncGx = append([]byte(nil), m.EncryptedGx...)
		e.theirHashGx = append([]byte(nil), m.HashedGx...)
		return &wire.DHKey{Gy: e.ourBytes}, nil

	case StateAwaitingSig:
		e.reset()
		return e.respond(m), nil
	}
	return nil, fmt.Errorf("%w: DH-Commit in %s", ErrUnexpectedMessage, e.state)
}

func (e *Engine) respond(m *wire.DHCommit) wire.Message {
	e.newKey()
	e.theirEncGx = append([]byte(nil), m.EncryptedGx...)
	e.theirHashGx = append([]byte(nil), m.HashedGx...)
	e.state = StateAwaitingRevealSig
	return &wire.DHKey{Gy: e.ourBytes}
}

func (e *Engine) handleDHKey(theirTag domain.InstanceTag, m *wire.DHKey) (wire.Message, error) {
	switch e.state {
	case StateAwaitingDHKey:
	case StateAwaitingSig:
		// A retransmitted DH-Key gets the same Reveal-Signature again.
		if bytes.Equal(m.Gy, e.theirBytes) {
			return e.lastRevealSig, nil
		}
		return nil, fmt.Errorf("%w: second DH-Key with a different value", ErrUnexpectedMessage)
	default:
		return nil, fmt.Errorf("%w: DH-Key in %s", ErrUnexpectedMessage, e.state)
	}

	gy, err := e.cfg.Group.DecodeElement(m.Gy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	e.theirPub = gy
	e.theirBytes = append([]byte(nil), m.Gy...)

	s := e.cfg.Group.SharedSecret(e.our.Private, gy)
	e.keys = deriveKeys(s)
	memzero.Zero(s)

	encSig, mac, err := e.sealSignedKey(e.keys.m1, e.keys.c, e.keys.m2, e.ourBytes, e.theirBytes, e.cfg.InstanceTag, theirTag)
	if err != nil {
		return nil, err
	}
	e.lastRevealSig = &wire.RevealSignature{
		RevealedKey:        append([]byte(nil), e.r...),
		EncryptedSignature: encSig,
		MAC:                mac,
	}
	e.state = StateAwaitingSig
	return e.lastRevealSig, nil
}

func (e *Engine) handleRevealSignature(theirTag domain.InstanceTag, m *wire.RevealSignature) (wire.Message, *Result, error) {
	if e.state != StateAwaitingRevealSig {
		return nil, nil, fmt.Errorf("%w: Reveal-Signature in %s", ErrUnexpectedMessage, e.state)
	}
	if len(m.RevealedKey) != crypto.AESKeySize {
		return nil, nil, ErrMalformed
	}

	gxBytes, err := crypto.CTR(m.RevealedKey, 0, e.theirEncGx)
	if err != nil {
		return nil, nil, err
	}
	sum := sha256.Sum256(gxBytes)
	if subtle.ConstantTimeCompare(sum[:], e.theirHashGx) != 1 {
		return nil, nil, ErrBadCommitment
	}
	gx, err := e.cfg.Group.DecodeElement(gxBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	e.theirPub = gx
	e.theirBytes = gxBytes

	s := e.cfg.Group.SharedSecret(e.our.Private, gx)
	e.keys = deriveKeys(s)
	memzero.Zero(s)

	peer, keyID, err := e.openSignedKey(e.keys.m1, e.keys.c, e.keys.m2, m.EncryptedSignature, m.MAC, e.theirBytes, e.ourBytes, theirTag, e.cfg.InstanceTag)
	if err != nil {
		return nil, nil, err
	}

	encSig, mac, err := e.sealSignedKey(e.keys.m1Prime, e.keys.cPrime, e.keys.m2Prime, e.ourBytes, e.theirBytes, e.cfg.InstanceTag, theirTag)
	if err != nil {
		return nil, nil, err
	}
	res := e.finish(peer, keyID, false)
	return &wire.Signature{EncryptedSignature: encSig, MAC: mac}, res, nil
}

func (e *Engine) handleSignature(theirTag domain.InstanceTag, m *wire.Signature) (*Result, error) {
	if e.state != StateAwaitingSig {
		return nil, fmt.Errorf("%w: Signature in %s", ErrUnexpectedMessage, e.state)
	}
	peer, keyID, err := e.openSignedKey(e.keys.m1Prime, e.keys.cPrime, e.keys.m2Prime, m.EncryptedSignature, m.MAC, e.theirBytes, e.ourBytes, theirTag, e.cfg.InstanceTag)
	if err != nil {
		return nil, err
	}
	return e.finish(peer, keyID, true), nil
}

// sealSignedKey builds AES_c(X) and MAC_m2(AES_c(X)) where
// X = {pub, keyid, Sign(MAC_m1(ourDH, theirDH, pub, keyid, fromTag, toTag))}.
func (e *Engine) sealSignedKey(m1, c, m2, ourDH, theirDH []byte, fromTag, toTag domain.InstanceTag) (enc, mac []byte, err error) {
	pub := e.cfg.Identity.EdPub
	digest := signedDigest(m1, ourDH, theirDH, pub[:], OurKeyID, fromTag, toTag)
	x, err := wire.Marshal(signedKey{
		Pub:   pub[:],
		KeyID: OurKeyID,
		Sig:   crypto.SignEd25519(e.cfg.Identity.EdPriv, digest),
	})
	if err != nil {
		return nil, nil, err
	}
	enc, err = crypto.CTR(c, 0, x)
	if err != nil {
		return nil, nil, err
	}
	return enc, crypto.MAC(m2, enc), nil
}

// openSignedKey checks the MAC before decrypting, then verifies the signature
// against the key the peer claims. theirDH is the sender's DH value.
func (e *Engine) openSignedKey(m1, c, m2, enc, mac, theirDH, ourDH []byte, fromTag, toTag domain.InstanceTag) (domain.Ed25519Public, uint32, error) {
	var peer domain.Ed25519Public
	if !crypto.CheckMAC(m2, mac, enc) {
		return peer, 0, ErrBadMAC
	}
	x, err := crypto.CTR(c, 0, enc)
	if err != nil {
		return peer, 0, err
	}
	var sk signedKey
	if err := wire.Unmarshal(x, &sk); err != nil {
		return peer, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(sk.Pub) != len(peer) || sk.KeyID == 0 {
		return peer, 0, ErrMalformed
	}
	copy(peer[:], sk.Pub)
	digest := signedDigest(m1, theirDH, ourDH, sk.Pub, sk.KeyID, fromTag, toTag)
	if !crypto.VerifyEd25519(peer, digest, sk.Sig) {
		return domain.Ed25519Public{}, 0, ErrBadSignature
	}
	return peer, sk.KeyID, nil
}

func signedDigest(m1, senderDH, receiverDH, pub []byte, keyID uint32, fromTag, toTag domain.InstanceTag) []byte {
	var tail [12]byte
	binary.BigEndian.PutUint32(tail[0:4], keyID)
	binary.BigEndian.PutUint32(tail[4:8], uint32(fromTag))
	binary.BigEndian.PutUint32(tail[8:12], uint32(toTag))
	return crypto.MAC(m1, senderDH, receiverDH, pub, tail[:])
}

func (e *Engine) finish(peer domain.Ed25519Public, theirKeyID uint32, initiator bool) *Result {
	res := &Result{
		SSID:            e.keys.ssid,
		Initiator:       initiator,
		OurKeyID:        OurKeyID,
		OurKey:          e.our,
		TheirKeyID:      theirKeyID,
		TheirPublic:     e.theirPub,
		PeerPublicKey:   peer,
		PeerFingerprint: crypto.Fingerprint(peer),
	}
	// The key pair now belongs to the caller.
	e.our = modp.KeyPair{}
	e.reset()
	e.state = StateDone
	return res
}

func (e *Engine) newKey() {
	e.our = e.cfg.Group.GenerateKey()
	e.ourBytes = e.cfg.Group.EncodeElement(e.our.Public)
}

func (e *Engine) reset() {
	e.our.Wipe()
	e.our = modp.KeyPair{}
	memzero.ZeroAll(e.r, e.theirEncGx, e.theirHashGx)
	e.keys.wipe()
	e.ourBytes, e.r, e.commit = nil, nil, nil
	e.theirEncGx, e.theirHashGx = nil, nil
	e.theirPub, e.theirBytes = nil, nil
	e.keys, e.lastRevealSig = nil, nil
	e.state = StateNone
}
