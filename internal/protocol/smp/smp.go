package smp

import (
	"errors"
	"fmt"

	"offrecord/internal/crypto/modp"
	"offrecord/internal/domain"
	"offrecord/internal/protocol/wire"
)

// State is the message the engine expects next.
type State int

const (
	StateExpect1 State = iota
	StateExpect2
	StateExpect3
	StateExpect4
)

func (s State) String() string {
	switch s {
	case StateExpect1:
		return "EXPECT1"
	case StateExpect2:
		return "EXPECT2"
	case StateExpect3:
		return "EXPECT3"
	case StateExpect4:
		return "EXPECT4"
	default:
		return "UNKNOWN"
	}
}

// Outcome is what a completed step means for the user.
type Outcome int

const (
	OutcomeNone Outcome = iota
	// OutcomeQuestion: the peer started a comparison; answer with Respond.
	OutcomeQuestion
	OutcomeSuccess
	OutcomeMismatch
)

var (
	// ErrStale is returned by Complete for a result whose run was abandoned.
	ErrStale = errors.New("smp: stale result")

	ErrUnexpectedMessage = fmt.Errorf("smp: unexpected message: %w", domain.ErrProtocolViolation)
	ErrInvalidValue      = fmt.Errorf("smp: invalid group value: %w", domain.ErrCryptoVerification)
	ErrProofFailed       = fmt.Errorf("smp: proof verification failed: %w", domain.ErrCryptoVerification)

	ErrEmptySecret = fmt.Errorf("smp: empty secret: %w", domain.ErrMisuse)
	ErrNoQuestion  = fmt.Errorf("smp: no comparison is waiting for an answer: %w", domain.ErrMisuse)
)

// Config binds an engine to one encrypted session.
type Config struct {
	Group            *modp.Group
	SSID             []byte
	OurFingerprint   []byte
	TheirFingerprint []byte
}

// Step is the visible effect of a completed transition.
type Step struct {
	Reply    wire.SMPMessage
	Outcome  Outcome
	Question string
}

// Pending is a validated transition waiting for its computation.
type Pending struct {
	run         uint64
	Computation Computation
}

// Engine runs comparisons for one session, as initiator or responder.
type Engine struct {
	cfg   Config
	gr    *modp.Group
	state State
	run   uint64

	// Set between receiving SMP1 and calling Respond.
	asked *asked
	// A Pending of the current run has not been completed yet.
	outstanding bool

	x   modp.Exponent // our hashed secret, initiator only
	e2  modp.Exponent // a2 or b2
	e3  modp.Exponent // a3 or b3
	g2  modp.Element
	g3  modp.Element
	g3o modp.Element // the other side's g3 share
	p   modp.Element // Pa/Pb
	q   modp.Element // Qa/Qb
	pb  modp.Element // responder: our Pb
	qb  modp.Element // responder: our Qb
}

type asked struct {
	g2a, g3a modp.Element
	question string
}

// New returns an idle engine.
func New(cfg Config) *Engine {
	if cfg.Group == nil {
		cfg.Group = modp.Default()
	}
	return &Engine{cfg: cfg, gr: cfg.Group}
}

// State returns the next expected message.
func (e *Engine) State() State { return e.state }

// AwaitingSecret reports whether a received SMP1 waits for Respond.
func (e *Engine) AwaitingSecret() bool { return e.asked != nil }

// InProgress reports whether a comparison has started and not finished.
func (e *Engine) InProgress() bool {
	return e.state != StateExpect1 || e.asked != nil || e.outstanding
}

// Current reports whether p would still be applied by Complete.
func (e *Engine) Current(p *Pending) bool { return p != nil && p.run == e.run }

// Abort discards the current run. Results still in flight become stale.
func (e *Engine) Abort() {
	e.reset()
	e.run++
}

// Start begins a comparison as initiator. Any run in progress is abandoned.
func (e *Engine) Start(secret []byte, question string) (*Pending, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	e.Abort()
	return e.pending(&startComp{
		gr:       e.gr,
		secret:   clone(secret),
		ourFP:    clone(e.cfg.OurFingerprint),
		theirFP:  clone(e.cfg.TheirFingerprint),
		ssid:     clone(e.cfg.SSID),
		question: question,
	}), nil
}

// Respond answers a received SMP1 with our secret.
func (e *Engine) Respond(secret []byte) (*Pending, error) {
	if e.asked == nil {
		return nil, ErrNoQuestion
	}
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	e.run++
	return e.pending(&respondComp{
		gr:      e.gr,
		secret:  clone(secret),
		ourFP:   clone(e.cfg.OurFingerprint),
		theirFP: clone(e.cfg.TheirFingerprint),
		ssid:    clone(e.cfg.SSID),
		g2a:     e.asked.g2a.Clone(),
		g3a:     e.asked.g3a.Clone(),
	}), nil
}

// Receive validates msg against the current state. SMP1 always restarts;
// any other message out of turn aborts the run and returns
// ErrUnexpectedMessage. SMPAbort is the caller's business: call Abort.
func (e *Engine) Receive(msg wire.SMPMessage) (*Pending, error) {
	switch m := msg.(type) {
	case *wire.SMP1:
		e.Abort()
		return e.pending(&questionComp{gr: e.gr, msg: *m}), nil

	case *wire.SMP2:
		if e.state != StateExpect2 {
			break
		}
		e.run++
		return e.pending(&thirdComp{
			gr: e.gr, msg: *m,
			x: e.x.Clone(), a2: e.e2.Clone(), a3: e.e3.Clone(),
		}), nil

	case *wire.SMP3:
		if e.state != StateExpect3 {
			break
		}
		e.run++
		return e.pending(&fourthComp{
			gr: e.gr, msg: *m,
			b3: e.e3.Clone(), g2: e.g2.Clone(), g3: e.g3.Clone(), g3a: e.g3o.Clone(),
			pb: e.pb.Clone(), qb: e.qb.Clone(),
		}), nil

	case *wire.SMP4:
		if e.state != StateExpect4 {
			break
		}
		e.run++
		return e.pending(&finalComp{
			gr: e.gr, msg: *m,
			a3: e.e3.Clone(), g3b: e.g3o.Clone(), pab: e.p.Clone(), qab: e.q.Clone(),
		}), nil
	}
	state := e.state
	e.Abort()
	return nil, fmt.Errorf("%w: %T in %s", ErrUnexpectedMessage, msg, state)
}

// Complete applies r if p still belongs to the current run. A failed
// computation aborts the run and returns its error.
func (e *Engine) Complete(p *Pending, r Result) (Step, error) {
	if p == nil || p.run != e.run {
		return Step{}, ErrStale
	}
	if r.err != nil {
		e.Abort()
		return Step{}, r.err
	}
	// Each pending applies once.
	e.run++
	e.outstanding = false

	switch o := r.out.(type) {
	case *startOut:
		e.reset()
		e.x, e.e2, e.e3 = o.x, o.a2, o.a3
		e.state = StateExpect2
		return Step{Reply: o.msg}, nil

	case *questionOut:
		e.reset()
		e.asked = &asked{g2a: o.g2a, g3a: o.g3a, question: o.question}
		return Step{Outcome: OutcomeQuestion, Question: o.question}, nil

	case *respondOut:
		e.reset()
		e.e3, e.g2, e.g3, e.g3o = o.b3, o.g2, o.g3, o.g3a
		e.pb, e.qb = o.pb, o.qb
		e.state = StateExpect3
		return Step{Reply: o.msg}, nil

	case *thirdOut:
		e.reset()
		e.e3, e.g3o, e.p, e.q = o.a3, o.g3b, o.pab, o.qab
		e.state = StateExpect4
		return Step{Reply: o.msg}, nil

	case *fourthOut:
		e.reset()
		return Step{Reply: o.msg, Outcome: matchOutcome(o.match)}, nil

	case *finalOut:
		e.reset()
		return Step{Outcome: matchOutcome(o.match)}, nil
	}
	e.Abort()
	return Step{}, fmt.Errorf("smp: unknown result %T", r.out)
}

// Wipe clears all run material.
func (e *Engine) Wipe() { e.Abort() }

func (e *Engine) pending(c Computation) *Pending {
	e.outstanding = true
	return &Pending{run: e.run, Computation: c}
}

func (e *Engine) reset() {
	for _, x := range []modp.Exponent{e.x, e.e2, e.e3} {
		e.gr.Wipe(x)
	}
	e.x, e.e2, e.e3 = nil, nil, nil
	e.g2, e.g3, e.g3o, e.p, e.q, e.pb, e.qb = nil, nil, nil, nil, nil, nil, nil
	e.asked = nil
	e.outstanding = false
	e.state = StateExpect1
}

func matchOutcome(ok bool) Outcome {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeMismatch
}

func clone(b []byte) []byte { return append([]byte(nil), b...) }
