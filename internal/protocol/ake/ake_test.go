package ake_test

import (
	"errors"
	"testing"

	"offrecord/internal/crypto"
	"offrecord/internal/crypto/modp"
	"offrecord/internal/domain"
	"offrecord/internal/protocol/ake"
	"offrecord/internal/protocol/wire"
)

const (
	aliceTag domain.InstanceTag = 0x101
	bobTag   domain.InstanceTag = 0x202
)

func newEngine(t *testing.T, tag domain.InstanceTag) (*ake.Engine, domain.Identity) {
	t.Helper()
	priv, pub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	id := domain.Identity{EdPub: pub, EdPriv: priv}
	return ake.New(ake.Config{Identity: id, InstanceTag: tag}), id
}

func mustHandle(t *testing.T, e *ake.Engine, from domain.InstanceTag, m wire.Message) (wire.Message, *ake.Result) {
	t.Helper()
	reply, res, err := e.Handle(from, m)
	if err != nil {
		t.Fatalf("Handle(%s): %v", m.Tag(), err)
	}
	return reply, res
}

// handshake runs the four messages and returns both results.
func handshake(t *testing.T, alice, bob *ake.Engine) (*ake.Result, *ake.Result) {
	t.Helper()
	commit, err := alice.Initiate()
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	dhKey, _ := mustHandle(t, bob, aliceTag, commit)
	reveal, _ := mustHandle(t, alice, bobTag, dhKey)
	sig, bobRes := mustHandle(t, bob, aliceTag, reveal)
	if bobRes == nil {
		t.Fatal("responder did not finish on Reveal-Signature")
	}
	none, aliceRes := mustHandle(t, alice, bobTag, sig)
	if none != nil {
		t.Fatalf("initiator replied to Signature with %s", none.Tag())
	}
	if aliceRes == nil {
		t.Fatal("initiator did not finish on Signature")
	}
	return aliceRes, bobRes
}

func TestHandshake_Completes(t *testing.T) {
	alice, aliceID := newEngine(t, aliceTag)
	bob, bobID := newEngine(t, bobTag)

	a, b := handshake(t, alice, bob)

	if a.SSID != b.SSID {
		t.Fatal("session ids differ")
	}
	if !a.Initiator || b.Initiator {
		t.Fatalf("initiator flags: alice=%v bob=%v", a.Initiator, b.Initiator)
	}
	if a.PeerPublicKey != bobID.EdPub || b.PeerPublicKey != aliceID.EdPub {
		t.Fatal("peer long-term keys not exchanged")
	}
	if a.PeerFingerprint != crypto.Fingerprint(bobID.EdPub) {
		t.Fatal("fingerprint does not match peer key")
	}
	g := modp.Default()
	if !g.Equal(a.TheirPublic, b.OurKey.Public) || !g.Equal(b.TheirPublic, a.OurKey.Public) {
		t.Fatal("DH public values not exchanged")
	}
	if a.TheirKeyID != ake.OurKeyID || b.TheirKeyID != ake.OurKeyID {
		t.Fatalf("key ids: %d %d", a.TheirKeyID, b.TheirKeyID)
	}
	if alice.State() != ake.StateDone || bob.State() != ake.StateDone {
		t.Fatalf("states: %s %s", alice.State(), bob.State())
	}
}

func TestHandshake_FreshSSIDEachRun(t *testing.T) {
	alice, _ := newEngine(t, aliceTag)
	bob, _ := newEngine(t, bobTag)

	first, _ := handshake(t, alice, bob)
	second, _ := handshake(t, alice, bob)
	if first.SSID == second.SSID {
		t.Fatal("re-keyed handshake reused the session id")
	}
}

func TestRevealSignature_BadCommitmentAborts(t *testing.T) {
	alice, _ := newEngine(t, aliceTag)
	bob, _ := newEngine(t, bobTag)

	commit, _ := alice.Initiate()
	dhKey, _ := mustHandle(t, bob, aliceTag, commit)
	reveal, _ := mustHandle(t, alice, bobTag, dhKey)

	rs := *reveal.(*wire.RevealSignature)
	rs.RevealedKey = append([]byte(nil), rs.RevealedKey...)
	rs.RevealedKey[0] ^= 0xff

	_, _, err := bob.Handle(aliceTag, &rs)
	if !errors.Is(err, ake.ErrBadCommitment) {
		t.Fatalf("err = %v, want ErrBadCommitment", err)
	}
	if !errors.Is(err, domain.ErrCryptoVerification) {
		t.Fatal("commitment failure should be a crypto verification error")
	}
	if bob.State() != ake.StateNone {
		t.Fatalf("state after abort = %s", bob.State())
	}
}

func TestRevealSignature_BadMACAborts(t *testing.T) {
	alice, _ := newEngine(t, aliceTag)
	bob, _ := newEngine(t, bobTag)

	commit, _ := alice.Initiate()
	dhKey, _ := mustHandle(t, bob, aliceTag, commit)
	reveal, _ := mustHandle(t, alice, bobTag, dhKey)

	rs := *reveal.(*wire.RevealSignature)
	rs.EncryptedSignature = append([]byte(nil), rs.EncryptedSignature...)
	rs.EncryptedSignature[3] ^= 0x01

	if _, _, err := bob.Handle(aliceTag, &rs); !errors.Is(err, ake.ErrBadMAC) {
		t.Fatalf("err = %v, want ErrBadMAC", err)
	}
	if bob.State() != ake.StateNone {
		t.Fatalf("state = %s", bob.State())
	}
}

func TestSignature_WrongInstanceTagRejected(t *testing.T) {
	alice, _ := newEngine(t, aliceTag)
	bob, _ := newEngine(t, bobTag)

	commit, _ := alice.Initiate()
	dhKey, _ := mustHandle(t, bob, aliceTag, commit)
	reveal, _ := mustHandle(t, alice, bobTag, dhKey)
	sig, _ := mustHandle(t, bob, aliceTag, reveal)

	// The signed MAC binds the sender's tag.
	if _, _, err := alice.Handle(0x999, sig); !errors.Is(err, ake.ErrBadSignature) {
		t.Fatalf("err = %v, want ErrBadSignature", err)
	}
	if alice.State() != ake.StateNone {
		t.Fatalf("state = %s", alice.State())
	}
}

func TestOutOfOrder_AbortsWithProtocolViolation(t *testing.T) {
	alice, _ := newEngine(t, aliceTag)
	bob, _ := newEngine(t, bobTag)

	commit, _ := alice.Initiate()
	mustHandle(t, bob, aliceTag, commit)

	// Bob is waiting for Reveal-Signature; a Signature does not fit.
	_, _, err := bob.Handle(aliceTag, &wire.Signature{EncryptedSignature: []byte{1}, MAC: []byte{2}})
	if !errors.Is(err, domain.ErrProtocolViolation) {
		t.Fatalf("err = %v, want protocol violation", err)
	}
	if bob.State() != ake.StateNone {
		t.Fatalf("state = %s", bob.State())
	}

	// Alice is untouched and a fresh run still works.
	if alice.State() != ake.StateAwaitingDHKey {
		t.Fatalf("alice state = %s", alice.State())
	}
	handshake(t, alice, bob)
}

func TestDone_StrayMessageKeepsResult(t *testing.T) {
	alice, _ := newEngine(t, aliceTag)
	bob, _ := newEngine(t, bobTag)
	handshake(t, alice, bob)

	_, _, err := alice.Handle(bobTag, &wire.DHKey{Gy: make([]byte, modp.ElementSize)})
	if !errors.Is(err, domain.ErrProtocolViolation) {
		t.Fatalf("err = %v", err)
	}
	if alice.State() != ake.StateDone {
		t.Fatalf("state = %s, want DONE", alice.State())
	}
}

func TestSimultaneousOpen_ConvergesOnOneInitiator(t *testing.T) {
	alice, _ := newEngine(t, aliceTag)
	bob, _ := newEngine(t, bobTag)

	ac, _ := alice.Initiate()
	bc, _ := bob.Initiate()

	// Each side sees the other's commit.
	aReply, _ := mustHandle(t, alice, bobTag, bc)
	bReply, _ := mustHandle(t, bob, aliceTag, ac)

	// Exactly one side keeps its commit and resends it; the other answers
	// with DH-Key.
	var (
		winner, loser       *ake.Engine
		winnerTag, loserTag domain.InstanceTag
		resent, dhKey       wire.Message
	)
	switch {
	case aReply.Tag() == wire.TagDHCommit && bReply.Tag() == wire.TagDHKey:
		winner, loser, winnerTag, loserTag, resent, dhKey = alice, bob, aliceTag, bobTag, aReply, bReply
	case bReply.Tag() == wire.TagDHCommit && aReply.Tag() == wire.TagDHKey:
		winner, loser, winnerTag, loserTag, resent, dhKey = bob, alice, bobTag, aliceTag, bReply, aReply
	default:
		t.Fatalf("replies %s / %s", aReply.Tag(), bReply.Tag())
	}

	// The loser sees the resent commit while already awaiting Reveal-Sig and
	// answers with the same DH-Key.
	again, _ := mustHandle(t, loser, winnerTag, resent)
	if string(again.(*wire.DHKey).Gy) != string(dhKey.(*wire.DHKey).Gy) {
		t.Fatal("loser changed its DH value")
	}

	reveal, _ := mustHandle(t, winner, loserTag, dhKey)
	sig, lRes := mustHandle(t, loser, winnerTag, reveal)
	_, wRes := mustHandle(t, winner, loserTag, sig)
	if lRes == nil || wRes == nil || lRes.SSID != wRes.SSID {
		t.Fatal("simultaneous open did not converge")
	}
}

func TestDuplicateDHKey_ResendsRevealSignature(t *testing.T) {
	alice, _ := newEngine(t, aliceTag)
	bob, _ := newEngine(t, bobTag)

	commit, _ := alice.Initiate()
	dhKey, _ := mustHandle(t, bob, aliceTag, commit)
	first, _ := mustHandle(t, alice, bobTag, dhKey)
	second, _ := mustHandle(t, alice, bobTag, dhKey)
	if first != second {
		t.Fatal("duplicate DH-Key did not resend the same Reveal-Signature")
	}
}
