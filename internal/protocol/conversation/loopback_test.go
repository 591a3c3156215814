package conversation_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"offrecord/internal/crypto"
	"offrecord/internal/domain"
	"offrecord/internal/domain/types"
	"offrecord/internal/protocol/conversation"
	"offrecord/internal/protocol/smp"
)

// peer is one side of a loopback link.
type peer struct {
	conv   *conversation.Conversation
	events []types.Event
	errs   []error
	fp     domain.Fingerprint
}

func newPeer(exec smp.Executor, queue bool) *peer {
	priv, pub, err := crypto.GenerateEd25519()
	Expect(err).NotTo(HaveOccurred())
	conv, err := conversation.New(conversation.Config{
		Identity:            domain.Identity{EdPub: pub, EdPriv: priv},
		Executor:            exec,
		QueueWhilePlaintext: queue,
	})
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(conv.Close)
	return &peer{conv: conv, fp: crypto.Fingerprint(pub)}
}

func (p *peer) has(kind types.EventKind) bool {
	for _, ev := range p.events {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}

func (p *peer) find(kind types.EventKind) (types.Event, bool) {
	for _, ev := range p.events {
		if ev.Kind == kind {
			return ev, true
		}
	}
	return types.Event{}, false
}

func (p *peer) texts() []string {
	var out []string
	for _, ev := range p.events {
		if ev.Kind == types.EventMessage {
			out = append(out, string(ev.Text))
		}
	}
	return out
}

type packet struct {
	to    *peer
	frame []byte
}

// loopback delivers frames between two peers in order.
type loopback struct {
	a, b  *peer
	queue []packet
}

func newLoopback(a, b *peer) *loopback {
	return &loopback{a: a, b: b}
}

func (l *loopback) other(p *peer) *peer {
	if p == l.a {
		return l.b
	}
	return l.a
}

// deliver records res as produced by from and queues its frames.
func (l *loopback) deliver(from *peer, res conversation.Result) {
	from.events = append(from.events, res.Events...)
	for _, f := range res.Outbound {
		l.queue = append(l.queue, packet{to: l.other(from), frame: f})
	}
}

func (l *loopback) flush() {
	for len(l.queue) > 0 {
		pkt := l.queue[0]
		l.queue = l.queue[1:]
		res, err := pkt.to.conv.ReceiveMessage(context.Background(), pkt.frame)
		if err != nil {
			pkt.to.errs = append(pkt.to.errs, err)
		}
		l.deliver(pkt.to, res)
	}
}

// settle flushes and then waits for deferred SMP steps until done holds.
func (l *loopback) settle(done func() bool) {
	deadline := time.After(30 * time.Second)
	for {
		l.flush()
		if done() {
			return
		}
		select {
		case d := <-l.a.conv.Deferred():
			l.apply(l.a, d)
		case d := <-l.b.conv.Deferred():
			l.apply(l.b, d)
		case <-deadline:
			Fail("loopback did not settle")
			return
		}
	}
}

// apply completes a delegated step on p and queues what it produced.
func (l *loopback) apply(p *peer, d conversation.Delegated) {
	res, err := p.conv.Apply(d)
	Expect(err).NotTo(HaveOccurred())
	l.deliver(p, res)
}

// talk sends text from p and delivers it at once.
func (l *loopback) talk(p *peer, text string) {
	res, err := p.conv.SendUserMessage([]byte(text))
	Expect(err).NotTo(HaveOccurred())
	l.deliver(p, res)
	l.flush()
}

func (l *loopback) handshake() {
	res, err := l.a.conv.StartHandshake()
	Expect(err).NotTo(HaveOccurred())
	l.deliver(l.a, res)
	l.flush()
	Expect(l.a.conv.MessageState()).To(Equal(types.MsgStateEncrypted))
	Expect(l.b.conv.MessageState()).To(Equal(types.MsgStateEncrypted))
}

// compare runs a full comparison started by a and answered by b.
func (l *loopback) compare(secretA, secretB, question string) {
	ctx := context.Background()
	res, err := l.a.conv.InitiateSecretComparison(ctx, []byte(secretA), question)
	Expect(err).NotTo(HaveOccurred())
	l.deliver(l.a, res)
	l.settle(func() bool { return l.b.has(types.EventSMPQuestion) })

	res, err = l.b.conv.InitiateSecretComparison(ctx, []byte(secretB), "")
	Expect(err).NotTo(HaveOccurred())
	l.deliver(l.b, res)
	l.settle(func() bool { return finished(l.a) && finished(l.b) })
}

func finished(p *peer) bool {
	return p.has(types.EventSMPSucceeded) || p.has(types.EventSMPFailed) || p.has(types.EventSMPAborted)
}

// gated holds computations until released. With auto set it runs them
// inline.
type gated struct {
	mu   sync.Mutex
	held []func()
	auto bool
}

func (g *gated) Execute(ctx context.Context, c smp.Computation) <-chan smp.Result {
	ch := make(chan smp.Result, 1)
	run := func() {
		ch <- c.Compute()
		close(ch)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.auto {
		run()
	} else {
		g.held = append(g.held, run)
	}
	return ch
}

func (g *gated) release() {
	g.mu.Lock()
	held := g.held
	g.held = nil
	g.auto = true
	g.mu.Unlock()
	for _, run := range held {
		run()
	}
}
