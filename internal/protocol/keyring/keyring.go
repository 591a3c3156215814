package keyring

import (
	"errors"
	"fmt"

	"offrecord/internal/crypto"
	"offrecord/internal/crypto/modp"
	"offrecord/internal/domain"
	"offrecord/internal/protocol/wire"
)

var (
	ErrUnknownKey  = fmt.Errorf("keyring: unknown key id: %w", domain.ErrProtocolViolation)
	ErrBadNextDH   = fmt.Errorf("keyring: invalid next DH value: %w", domain.ErrProtocolViolation)
	ErrReplay      = fmt.Errorf("keyring: counter did not increase: %w", domain.ErrReplay)
	ErrBadMAC      = fmt.Errorf("keyring: MAC mismatch: %w", domain.ErrCryptoVerification)
	errWiped       = errors.New("keyring: wiped")
	errCounterWrap = errors.New("keyring: send counter exhausted")
)

// Config seeds a KeyRing from a finished handshake.
type Config struct {
	Group       *modp.Group
	OurKeyID    uint32
	OurKey      modp.KeyPair
	TheirKeyID  uint32
	TheirPublic modp.Element
}

type ourKey struct {
	id  uint32
	key modp.KeyPair
}

type theirKey struct {
	id  uint32
	pub modp.Element
}

type pairID struct{ ours, theirs uint32 }

// KeyRing holds the live key pairs of one session.
type KeyRing struct {
	gr *modp.Group

	ourPrev, ourCur     *ourKey
	theirPrev, theirCur *theirKey

	pairs  map[pairID]*pairKeys
	reveal [][]byte
}

// New takes ownership of cfg.OurKey as our previous key and generates the
// next one.
func New(cfg Config) (*KeyRing, error) {
	if cfg.Group == nil {
		cfg.Group = modp.Default()
	}
	if cfg.OurKeyID == 0 || cfg.TheirKeyID == 0 || cfg.TheirPublic == nil || cfg.OurKey.Private == nil {
		return nil, errors.New("keyring: incomplete handshake result")
	}
	k := &KeyRing{
		gr:       cfg.Group,
		ourPrev:  &ourKey{id: cfg.OurKeyID, key: cfg.OurKey},
		ourCur:   &ourKey{id: cfg.OurKeyID + 1, key: cfg.Group.GenerateKey()},
		theirCur: &theirKey{id: cfg.TheirKeyID, pub: cfg.TheirPublic},
		pairs:    make(map[pairID]*pairKeys),
	}
	return k, nil
}

// Seal encrypts payload under the newest pair the peer can already decrypt
// and returns the finished Data message. h must be the header the frame will
// be sent with; its Tag is forced to Data.
func (k *KeyRing) Seal(h wire.Header, flags uint8, payload []byte) (*wire.Data, error) {
	if k.ourCur == nil {
		return nil, errWiped
	}
	h.Tag = wire.TagData

	ours, theirs := k.ourPrev, k.theirCur
	pk := k.pair(ours, theirs)
	if pk.sendCtr == ^uint64(0) {
		return nil, errCounterWrap
	}
	pk.sendCtr++

	ct, err := crypto.CTR(pk.sendAES, pk.sendCtr, payload)
	if err != nil {
		return nil, err
	}
	d := &wire.Data{
		Flags:          flags,
		SenderKeyID:    ours.id,
		RecipientKeyID: theirs.id,
		NextDH:         k.gr.EncodeElement(k.ourCur.key.Public),
		Counter:        pk.sendCtr,
		Ciphertext:     ct,
	}
	d.MAC = crypto.MAC(pk.sendMAC, d.Authenticated(h))
	d.RevealedMACKeys, k.reveal = k.reveal, nil
	return d, nil
}

// Open checks and decrypts d. Checks run in order: key ids, counter, MAC.
// Nothing is decrypted or rotated unless all pass.
func (k *KeyRing) Open(h wire.Header, d *wire.Data) ([]byte, error) {
	if k.ourCur == nil {
		return nil, errWiped
	}
	ours := k.ourByID(d.RecipientKeyID)
	theirs := k.theirByID(d.SenderKeyID)
	if ours == nil || theirs == nil {
		return nil, fmt.Errorf("%w: ours=%d theirs=%d", ErrUnknownKey, d.RecipientKeyID, d.SenderKeyID)
	}
	pk := k.pair(ours, theirs)
	if d.Counter <= pk.recvCtr {
		return nil, ErrReplay
	}
	if !crypto.CheckMAC(pk.recvMAC, d.MAC, d.Authenticated(h)) {
		return nil, ErrBadMAC
	}

	var next modp.Element
	if theirs == k.theirCur {
		var err error
		if next, err = k.gr.DecodeElement(d.NextDH); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadNextDH, err)
		}
	}

	pt, err := crypto.CTR(pk.recvAES, d.Counter, d.Ciphertext)
	if err != nil {
		return nil, err
	}
	pk.recvCtr = d.Counter
	pk.recvUsed = true

	if ours == k.ourCur {
		k.rotateOurs()
	}
	if next != nil {
		k.rotateTheirs(next)
	}
	return pt, nil
}

// OurKeyID returns the id of the key we advertise in NextDH.
func (k *KeyRing) OurKeyID() uint32 {
	if k.ourCur == nil {
		return 0
	}
	return k.ourCur.id
}

// TheirKeyID returns the id of the peer's newest known key.
func (k *KeyRing) TheirKeyID() uint32 {
	if k.theirCur == nil {
		return 0
	}
	return k.theirCur.id
}

// PendingReveals reports how many old MAC keys wait for the next Seal.
func (k *KeyRing) PendingReveals() int { return len(k.reveal) }

// Wipe zeroes every key. The KeyRing is unusable afterwards.
func (k *KeyRing) Wipe() {
	for id, pk := range k.pairs {
		pk.wipe()
		delete(k.pairs, id)
	}
	for _, o := range []*ourKey{k.ourPrev, k.ourCur} {
		if o != nil {
			o.key.Wipe()
		}
	}
	k.ourPrev, k.ourCur, k.theirPrev, k.theirCur = nil, nil, nil, nil
	k.reveal = nil
}

// rotateOurs retires our previous key after the peer used our current one.
func (k *KeyRing) rotateOurs() {
	old := k.ourPrev
	k.retire(func(id pairID) bool { return id.ours == old.id })
	old.key.Wipe()
	k.ourPrev = k.ourCur
	k.ourCur = &ourKey{id: k.ourCur.id + 1, key: k.gr.GenerateKey()}
}

// rotateTheirs adopts next as the peer's newest key.
func (k *KeyRing) rotateTheirs(next modp.Element) {
	if k.gr.Equal(next, k.theirCur.pub) {
		return
	}
	if old := k.theirPrev; old != nil {
		k.retire(func(id pairID) bool { return id.theirs == old.id })
	}
	k.theirPrev = k.theirCur
	k.theirCur = &theirKey{id: k.theirCur.id + 1, pub: next}
}

func (k *KeyRing) retire(match func(pairID) bool) {
	for id, pk := range k.pairs {
		if !match(id) {
			continue
		}
		if pk.recvUsed {
			k.reveal = append(k.reveal, append([]byte(nil), pk.recvMAC...))
		}
		pk.wipe()
		delete(k.pairs, id)
	}
}

func (k *KeyRing) pair(ours *ourKey, theirs *theirKey) *pairKeys {
	id := pairID{ours.id, theirs.id}
	pk, ok := k.pairs[id]
	if !ok {
		pk = derivePair(k.gr, ours.key, theirs.pub)
		k.pairs[id] = pk
	}
	return pk
}

func (k *KeyRing) ourByID(id uint32) *ourKey {
	for _, o := range []*ourKey{k.ourPrev, k.ourCur} {
		if o != nil && o.id == id {
			return o
		}
	}
	return nil
}

func (k *KeyRing) theirByID(id uint32) *theirKey {
	for _, t := range []*theirKey{k.theirPrev, k.theirCur} {
		if t != nil && t.id == id {
			return t
		}
	}
	return nil
}
