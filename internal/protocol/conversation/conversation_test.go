package conversation_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"offrecord/internal/domain"
	"offrecord/internal/domain/types"
	"offrecord/internal/protocol/conversation"
	"offrecord/internal/protocol/smp"
	"offrecord/internal/worker"
)

var _ = Describe("AKE", func() {
	It("reaches ENCRYPTED on both sides without touching trust", func() {
		alice, bob := newPeer(nil, false), newPeer(nil, false)
		link := newLoopback(alice, bob)
		link.handshake()

		for _, p := range []*peer{alice, bob} {
			Expect(p.has(types.EventAKESuccess)).To(BeTrue())
			Expect(p.has(types.EventEncrypted)).To(BeTrue())
			Expect(p.has(types.EventSMPSucceeded)).To(BeFalse())
			Expect(p.conv.Trusted()).To(BeFalse())
			Expect(p.errs).To(BeEmpty())
		}
		Expect(alice.conv.PeerFingerprint()).To(Equal(bob.fp))
		Expect(bob.conv.PeerFingerprint()).To(Equal(alice.fp))
	})

	It("delivers text both ways once encrypted", func() {
		alice, bob := newPeer(nil, false), newPeer(nil, false)
		link := newLoopback(alice, bob)
		link.handshake()

		for _, m := range []struct {
			from *peer
			text string
		}{{alice, "hi bob"}, {bob, "hi alice"}, {alice, "how are you"}, {alice, "still there?"}, {bob, "yes"}} {
			res, err := m.from.conv.SendUserMessage([]byte(m.text))
			Expect(err).NotTo(HaveOccurred())
			link.deliver(m.from, res)
			link.flush()
		}
		Expect(bob.texts()).To(Equal([]string{"hi bob", "how are you", "still there?"}))
		Expect(alice.texts()).To(Equal([]string{"hi alice", "yes"}))
	})

	It("queues text sent before the AKE and flushes it afterwards", func() {
		alice, bob := newPeer(nil, true), newPeer(nil, false)
		link := newLoopback(alice, bob)

		res, err := alice.conv.SendUserMessage([]byte("early"))
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Queued).To(BeTrue())
		Expect(res.Outbound).To(HaveLen(1))

		link.deliver(alice, res)
		link.flush()
		Expect(bob.texts()).To(ConsistOf("early"))
	})

	It("refuses plaintext sends when queueing is off", func() {
		alice := newPeer(nil, false)
		res, err := alice.conv.SendUserMessage([]byte("x"))
		Expect(errors.Is(err, domain.ErrMisuse)).To(BeTrue())
		Expect(res.Outbound).To(BeEmpty())
	})
})

var _ = Describe("Data", func() {
	It("drops a replayed data message without producing text", func() {
		alice, bob := newPeer(nil, false), newPeer(nil, false)
		link := newLoopback(alice, bob)
		link.handshake()

		res, err := alice.conv.SendUserMessage([]byte("once"))
		Expect(err).NotTo(HaveOccurred())
		link.deliver(alice, res)
		link.flush()
		Expect(bob.texts()).To(ConsistOf("once"))

		replay, err := bob.conv.ReceiveMessage(context.Background(), res.Outbound[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(replay.Events).To(HaveLen(1))
		Expect(replay.Events[0].Kind).To(Equal(types.EventReplay))
		Expect(errors.Is(replay.Events[0].Err, domain.ErrReplay)).To(BeTrue())
		Expect(replay.Outbound).To(BeEmpty())
	})

	It("rejects a frame addressed to another instance", func() {
		alice, bob := newPeer(nil, false), newPeer(nil, false)
		carol := newPeer(nil, false)
		link := newLoopback(alice, bob)
		link.handshake()

		res, err := alice.conv.SendUserMessage([]byte("for bob"))
		Expect(err).NotTo(HaveOccurred())
		_, err = carol.conv.ReceiveMessage(context.Background(), res.Outbound[0])
		Expect(errors.Is(err, domain.ErrProtocolViolation)).To(BeTrue())
	})

	It("moves the peer to FINISHED when the session ends", func() {
		alice, bob := newPeer(nil, false), newPeer(nil, false)
		link := newLoopback(alice, bob)
		link.handshake()

		res, err := alice.conv.EndSession()
		Expect(err).NotTo(HaveOccurred())
		link.deliver(alice, res)
		link.flush()

		Expect(alice.conv.MessageState()).To(Equal(types.MsgStatePlaintext))
		Expect(bob.conv.MessageState()).To(Equal(types.MsgStateFinished))
		Expect(bob.has(types.EventFinished)).To(BeTrue())

		_, err = bob.conv.SendUserMessage([]byte("anyone?"))
		Expect(errors.Is(err, conversation.ErrFinished)).To(BeTrue())
	})
})

var _ = Describe("Secret comparison", func() {
	const secret = "applesAndOranges"

	executors := map[string]func() smp.Executor{
		"inline": func() smp.Executor { return smp.Inline{} },
		"worker pool": func() smp.Executor {
			p := worker.New(2)
			DeferCleanup(p.Close)
			return p
		},
	}

	for name, mk := range executors {
		Context("with the "+name+" executor", func() {
			var (
				alice, bob *peer
				link       *loopback
			)

			BeforeEach(func() {
				alice, bob = newPeer(mk(), false), newPeer(mk(), false)
				link = newLoopback(alice, bob)
				link.handshake()
			})

			It("matching secrets establish trust on both sides", func() {
				link.compare(secret, secret, "")
				for _, p := range []*peer{alice, bob} {
					Expect(p.has(types.EventSMPSucceeded)).To(BeTrue())
					Expect(p.conv.Trusted()).To(BeTrue())
				}
			})

			It("different secrets leave both sides untrusted", func() {
				link.compare(secret, "bananasAndPears", "")
				for _, p := range []*peer{alice, bob} {
					Expect(p.has(types.EventSMPFailed)).To(BeTrue())
					Expect(p.has(types.EventSMPSucceeded)).To(BeFalse())
					Expect(p.conv.Trusted()).To(BeFalse())
				}
			})

			It("the question reaches the responder verbatim", func() {
				link.compare(secret, secret, "What is difference?")
				ev, ok := bob.find(types.EventSMPQuestion)
				Expect(ok).To(BeTrue())
				Expect(ev.Question).To(Equal("What is difference?"))
				Expect(alice.conv.Trusted()).To(BeTrue())
				Expect(bob.conv.Trusted()).To(BeTrue())
			})

			It("reaches the same outcome with text flowing between steps", func() {
				ctx := context.Background()
				res, err := alice.conv.InitiateSecretComparison(ctx, []byte(secret), "")
				Expect(err).NotTo(HaveOccurred())
				link.deliver(alice, res)
				link.talk(alice, "a1")
				link.talk(bob, "b1")
				link.talk(bob, "b2")
				link.settle(func() bool { return bob.has(types.EventSMPQuestion) })

				res, err = bob.conv.InitiateSecretComparison(ctx, []byte(secret), "")
				Expect(err).NotTo(HaveOccurred())
				link.deliver(bob, res)
				link.talk(bob, "b3")
				link.talk(alice, "a2")
				link.talk(alice, "a3")
				link.settle(func() bool { return finished(alice) && finished(bob) })

				for _, p := range []*peer{alice, bob} {
					Expect(p.has(types.EventReplay)).To(BeFalse())
					Expect(p.has(types.EventSMPSucceeded)).To(BeTrue())
					Expect(p.conv.Trusted()).To(BeTrue())
				}
				Expect(bob.texts()).To(Equal([]string{"a1", "a2", "a3"}))
				Expect(alice.texts()).To(Equal([]string{"b1", "b2", "b3"}))
			})

			It("gives the same outcome whichever side starts", func() {
				reverse := newLoopback(bob, alice)
				reverse.compare(secret, secret, "")
				Expect(alice.conv.Trusted()).To(BeTrue())
				Expect(bob.conv.Trusted()).To(BeTrue())
			})
		})
	}

	It("comparing before the AKE is misuse and sends nothing", func() {
		alice := newPeer(nil, false)
		res, err := alice.conv.InitiateSecretComparison(context.Background(), []byte(secret), "")
		Expect(errors.Is(err, domain.ErrMisuse)).To(BeTrue())
		Expect(domain.Recoverable(err)).To(BeFalse())
		Expect(res.Outbound).To(BeEmpty())
	})

	It("rejects an empty secret", func() {
		alice, bob := newPeer(nil, false), newPeer(nil, false)
		newLoopback(alice, bob).handshake()
		_, err := alice.conv.InitiateSecretComparison(context.Background(), nil, "")
		Expect(errors.Is(err, domain.ErrMisuse)).To(BeTrue())
	})

	It("ignores a delegated result that arrives after an abort", func() {
		gate := &gated{}
		alice, bob := newPeer(gate, false), newPeer(nil, false)
		link := newLoopback(alice, bob)
		link.handshake()

		res, err := alice.conv.InitiateSecretComparison(context.Background(), []byte(secret), "")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Outbound).To(BeEmpty())

		res, err = alice.conv.AbortSecretComparison()
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Outbound).To(HaveLen(1))
		link.deliver(alice, res)
		link.flush()
		Expect(bob.has(types.EventSMPAborted)).To(BeTrue())

		gate.release()
		var late conversation.Delegated
		Eventually(alice.conv.Deferred(), 5*time.Second).Should(Receive(&late))
		res, err = alice.conv.Apply(late)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Outbound).To(BeEmpty())
		Expect(res.Events).To(BeEmpty())
		Expect(alice.conv.Trusted()).To(BeFalse())

		// The channel still works for a fresh run.
		alice.events, bob.events = nil, nil
		link.compare(secret, secret, "")
		Expect(alice.conv.Trusted()).To(BeTrue())
		Expect(bob.conv.Trusted()).To(BeTrue())
	})

	It("seals a delegated step after text sent while it waited", func() {
		gate := &gated{}
		alice, bob := newPeer(gate, false), newPeer(nil, false)
		link := newLoopback(alice, bob)
		link.handshake()

		res, err := alice.conv.InitiateSecretComparison(context.Background(), []byte(secret), "")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Outbound).To(BeEmpty())
		gate.release()

		var held conversation.Delegated
		Eventually(alice.conv.Deferred(), 5*time.Second).Should(Receive(&held))
		link.talk(alice, "hi")
		link.apply(alice, held)
		link.flush()

		Expect(bob.texts()).To(Equal([]string{"hi"}))
		Expect(bob.has(types.EventReplay)).To(BeFalse())
		Expect(bob.has(types.EventSMPQuestion)).To(BeTrue())

		res, err = bob.conv.InitiateSecretComparison(context.Background(), []byte(secret), "")
		Expect(err).NotTo(HaveOccurred())
		link.deliver(bob, res)
		link.settle(func() bool { return finished(alice) && finished(bob) })
		Expect(alice.conv.Trusted()).To(BeTrue())
		Expect(bob.conv.Trusted()).To(BeTrue())
	})

	It("keeps the encrypted session after the peer aborts", func() {
		alice, bob := newPeer(nil, false), newPeer(nil, false)
		link := newLoopback(alice, bob)
		link.handshake()

		res, err := alice.conv.InitiateSecretComparison(context.Background(), []byte(secret), "")
		Expect(err).NotTo(HaveOccurred())
		link.deliver(alice, res)
		link.flush()

		res, err = bob.conv.AbortSecretComparison()
		Expect(err).NotTo(HaveOccurred())
		link.deliver(bob, res)
		link.flush()

		Expect(alice.has(types.EventSMPAborted)).To(BeTrue())
		Expect(alice.conv.MessageState()).To(Equal(types.MsgStateEncrypted))
		Expect(bob.conv.MessageState()).To(Equal(types.MsgStateEncrypted))
	})
})
