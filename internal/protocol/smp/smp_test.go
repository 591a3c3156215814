package smp_test

import (
	"context"
	"errors"
	"testing"

	"offrecord/internal/domain"
	"offrecord/internal/protocol/smp"
	"offrecord/internal/protocol/wire"
)

var (
	fpAlice = []byte("alice-fingerprint-0123456789abcd")
	fpBob   = []byte("bob-fingerprint-0123456789abcdef")
	ssid    = []byte{1, 2, 3, 4, 5, 6, 7, 8}
)

func pair() (alice, bob *smp.Engine) {
	alice = smp.New(smp.Config{SSID: ssid, OurFingerprint: fpAlice, TheirFingerprint: fpBob})
	bob = smp.New(smp.Config{SSID: ssid, OurFingerprint: fpBob, TheirFingerprint: fpAlice})
	return alice, bob
}

func complete(t *testing.T, e *smp.Engine, p *smp.Pending) smp.Step {
	t.Helper()
	r, ok := smp.Run(context.Background(), smp.Inline{}, p)
	if !ok {
		t.Fatal("inline executor produced no result")
	}
	step, err := e.Complete(p, r)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	return step
}

func receive(t *testing.T, e *smp.Engine, m wire.SMPMessage) smp.Step {
	t.Helper()
	p, err := e.Receive(m)
	if err != nil {
		t.Fatalf("Receive(%T): %v", m, err)
	}
	return complete(t, e, p)
}

// compare runs a full exchange and returns both outcomes.
func compare(t *testing.T, secretA, secretB, question string) (smp.Outcome, smp.Outcome) {
	t.Helper()
	alice, bob := pair()

	p, err := alice.Start([]byte(secretA), question)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	s1 := complete(t, alice, p).Reply

	q := receive(t, bob, s1)
	if q.Outcome != smp.OutcomeQuestion || q.Question != question {
		t.Fatalf("question step = %+v", q)
	}
	p, err = bob.Respond([]byte(secretB))
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	s2 := complete(t, bob, p).Reply

	s3 := receive(t, alice, s2).Reply
	last := receive(t, bob, s3)
	final := receive(t, alice, last.Reply)

	if alice.State() != smp.StateExpect1 || bob.State() != smp.StateExpect1 {
		t.Fatalf("states after run: %s %s", alice.State(), bob.State())
	}
	return final.Outcome, last.Outcome
}

func TestCompare_SameSecretSucceeds(t *testing.T) {
	a, b := compare(t, "blue", "blue", "")
	if a != smp.OutcomeSuccess || b != smp.OutcomeSuccess {
		t.Fatalf("outcomes %v %v, want success", a, b)
	}
}

func TestCompare_DifferentSecretFails(t *testing.T) {
	a, b := compare(t, "blue", "green", "favourite colour?")
	if a != smp.OutcomeMismatch || b != smp.OutcomeMismatch {
		t.Fatalf("outcomes %v %v, want mismatch", a, b)
	}
}

func TestCompare_SecretBoundToSession(t *testing.T) {
	alice := smp.New(smp.Config{SSID: ssid, OurFingerprint: fpAlice, TheirFingerprint: fpBob})
	bob := smp.New(smp.Config{SSID: []byte{9, 9, 9, 9, 9, 9, 9, 9}, OurFingerprint: fpBob, TheirFingerprint: fpAlice})

	p, _ := alice.Start([]byte("same"), "")
	receive(t, bob, complete(t, alice, p).Reply)
	p, _ = bob.Respond([]byte("same"))
	s3 := receive(t, alice, complete(t, bob, p).Reply).Reply
	last := receive(t, bob, s3)
	if last.Outcome != smp.OutcomeMismatch {
		t.Fatalf("outcome %v across different sessions", last.Outcome)
	}
}

func TestStart_EmptySecretIsMisuse(t *testing.T) {
	alice, _ := pair()
	if _, err := alice.Start(nil, "q"); !errors.Is(err, domain.ErrMisuse) {
		t.Fatalf("err = %v", err)
	}
}

func TestRespond_WithoutQuestionIsMisuse(t *testing.T) {
	_, bob := pair()
	if _, err := bob.Respond([]byte("x")); !errors.Is(err, smp.ErrNoQuestion) {
		t.Fatalf("err = %v", err)
	}
}

func TestReceive_OutOfOrderAborts(t *testing.T) {
	alice, bob := pair()
	p, _ := alice.Start([]byte("s"), "")
	receive(t, bob, complete(t, alice, p).Reply)

	_, err := bob.Receive(&wire.SMP4{})
	if !errors.Is(err, domain.ErrProtocolViolation) {
		t.Fatalf("err = %v", err)
	}
	if bob.InProgress() {
		t.Fatal("engine still in progress after out-of-order message")
	}
}

func TestComplete_StaleAfterAbort(t *testing.T) {
	alice, _ := pair()
	p, _ := alice.Start([]byte("s"), "")
	r, _ := smp.Run(context.Background(), smp.Inline{}, p)

	alice.Abort()
	if _, err := alice.Complete(p, r); !errors.Is(err, smp.ErrStale) {
		t.Fatalf("err = %v, want ErrStale", err)
	}
	if alice.State() != smp.StateExpect1 {
		t.Fatalf("state = %s", alice.State())
	}
}

func TestComplete_AppliesOnce(t *testing.T) {
	alice, _ := pair()
	p, _ := alice.Start([]byte("s"), "")
	r, _ := smp.Run(context.Background(), smp.Inline{}, p)
	if _, err := alice.Complete(p, r); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := alice.Complete(p, r); !errors.Is(err, smp.ErrStale) {
		t.Fatalf("second Complete err = %v", err)
	}
}

func TestSMP1_RestartsRun(t *testing.T) {
	alice, bob := pair()
	p, _ := alice.Start([]byte("one"), "")
	first := complete(t, alice, p).Reply
	receive(t, bob, first)

	p, _ = alice.Start([]byte("two"), "again?")
	second := complete(t, alice, p).Reply
	step := receive(t, bob, second)
	if step.Question != "again?" {
		t.Fatalf("question = %q", step.Question)
	}
	if !bob.AwaitingSecret() {
		t.Fatal("bob should wait for a secret")
	}
}

func TestTamperedProofRejected(t *testing.T) {
	alice, bob := pair()
	p, _ := alice.Start([]byte("s"), "")
	s1 := *complete(t, alice, p).Reply.(*wire.SMP1)
	// Swap the two proofs.
	s1.C2, s1.C3 = s1.C3, s1.C2

	pb, err := bob.Receive(&s1)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	r, _ := smp.Run(context.Background(), smp.Inline{}, pb)
	if _, err := bob.Complete(pb, r); !errors.Is(err, domain.ErrCryptoVerification) {
		t.Fatalf("err = %v", err)
	}
	if bob.AwaitingSecret() {
		t.Fatal("rejected SMP1 left a question pending")
	}
}

func TestInvalidElementRejected(t *testing.T) {
	_, bob := pair()
	pb, _ := bob.Receive(&wire.SMP1{G2a: []byte{1}})
	r, _ := smp.Run(context.Background(), smp.Inline{}, pb)
	if _, err := bob.Complete(pb, r); !errors.Is(err, smp.ErrInvalidValue) {
		t.Fatalf("err = %v", err)
	}
}
