package session_test

import (
	"errors"
	"testing"

	"offrecord/internal/crypto"
	"offrecord/internal/domain"
	"offrecord/internal/domain/types"
	"offrecord/internal/services/session"
)

func newTable(t *testing.T) *session.Service {
	t.Helper()
	priv, pub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatal(err)
	}
	return session.New(session.Config{
		Identity:    domain.Identity{EdPub: pub, EdPriv: priv},
		InstanceTag: 0x4242,
	})
}

func TestGet_CreatesOncePerPeer(t *testing.T) {
	s := newTable(t)
	defer s.Close()

	a, err := s.Get("bob")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, err := s.Get("bob")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if a != b {
		t.Fatal("second Get created a new conversation")
	}
	if a.InstanceTag() != 0x4242 {
		t.Fatalf("instance tag = 0x%x", uint32(a.InstanceTag()))
	}
	if a.MessageState() != types.MsgStatePlaintext {
		t.Fatalf("new conversation in %s", a.MessageState())
	}

	if _, err := s.Get("alice"); err != nil {
		t.Fatalf("get: %v", err)
	}
	peers := s.Peers()
	if len(peers) != 2 || peers[0] != "alice" || peers[1] != "bob" {
		t.Fatalf("peers = %v", peers)
	}
}

func TestForget(t *testing.T) {
	s := newTable(t)
	defer s.Close()

	if _, err := s.Get("bob"); err != nil {
		t.Fatal(err)
	}
	s.Forget("bob")
	if _, ok := s.Lookup("bob"); ok {
		t.Fatal("bob still present after Forget")
	}
}

func TestClose(t *testing.T) {
	s := newTable(t)
	if _, err := s.Get("bob"); err != nil {
		t.Fatal(err)
	}
	s.Close()
	s.Close()

	if _, ok := <-s.Deferred(); ok {
		t.Fatal("Deferred still open after Close")
	}
	if _, err := s.Get("carol"); !errors.Is(err, session.ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}
