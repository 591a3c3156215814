package message

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"offrecord/internal/domain"
	"offrecord/internal/protocol/conversation"
	"offrecord/internal/services/session"
)

// Notice is an event from the conversation with Peer.
type Notice struct {
	Peer  domain.Username
	Event domain.Event
	// Fingerprint is the peer key authenticated by the AKE, when known.
	Fingerprint domain.Fingerprint
	// Verified is set when Fingerprint matches a stored trust record.
	Verified bool
}

// Service sends and receives protocol frames for user me.
type Service struct {
	me       domain.Username
	sessions *session.Service
	relay    domain.RelayClient
	trust    domain.TrustStore
	log      *log.Logger
	now      func() time.Time
}

// New constructs a message service. logger may be nil.
func New(
	me domain.Username,
	sessions *session.Service,
	relay domain.RelayClient,
	trust domain.TrustStore,
	logger *log.Logger,
) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{
		me:       me,
		sessions: sessions,
		relay:    relay,
		trust:    trust,
		log:      logger,
		now:      time.Now,
	}
}

// Connect asks peer to run the AKE with us.
func (s *Service) Connect(ctx context.Context, peer domain.Username) error {
	return s.call(ctx, peer, func(c *conversation.Conversation) (conversation.Result, error) {
		return c.StartHandshake()
	})
}

// Send encrypts text for peer. It reports whether the text was queued until
// the AKE finishes.
func (s *Service) Send(ctx context.Context, peer domain.Username, text []byte) (bool, error) {
	var queued bool
	err := s.call(ctx, peer, func(c *conversation.Conversation) (conversation.Result, error) {
		res, err := c.SendUserMessage(text)
		queued = res.Queued
		return res, err
	})
	return queued, err
}

// Compare starts a secret comparison with peer, or answers the one peer
// started. ctx bounds the relay requests only: delegated SMP steps outlive
// it and arrive on the session table's Deferred channel.
func (s *Service) Compare(ctx context.Context, peer domain.Username, secret []byte, question string) ([]Notice, error) {
	c, err := s.sessions.Get(peer)
	if err != nil {
		return nil, err
	}
	res, err := c.InitiateSecretComparison(context.WithoutCancel(ctx), secret, question)
	if err != nil {
		return nil, err
	}
	return s.handle(ctx, peer, c, res)
}

// AbortCompare cancels the comparison in progress with peer.
func (s *Service) AbortCompare(ctx context.Context, peer domain.Username) error {
	return s.call(ctx, peer, func(c *conversation.Conversation) (conversation.Result, error) {
		return c.AbortSecretComparison()
	})
}

// End closes the encrypted session with peer.
func (s *Service) End(ctx context.Context, peer domain.Username) error {
	return s.call(ctx, peer, func(c *conversation.Conversation) (conversation.Result, error) {
		return c.EndSession()
	})
}

// Poll fetches up to limit envelopes, feeds them to their conversations and
// acks what was consumed. As with Compare, SMP work started by a frame is
// not bound to ctx. Frames a conversation rejects are reported as
// EventError notices and still acked.
func (s *Service) Poll(ctx context.Context, limit int) ([]Notice, error) {
	envs, err := s.relay.FetchEnvelopes(ctx, s.me, limit)
	if err != nil {
		return nil, err
	}

	var out []Notice
	processed := 0
	for _, env := range envs {
		c, err := s.sessions.Get(env.From)
		if err != nil {
			return out, s.ack(ctx, processed, err)
		}
		res, err := c.ReceiveMessage(context.WithoutCancel(ctx), env.Frame)
		processed++
		if err != nil {
			s.log.Printf("message: frame from %s: %v", env.From, err)
			out = append(out, Notice{Peer: env.From, Event: domain.Event{Kind: domain.EventError, Err: err}})
			continue
		}
		notices, err := s.handle(ctx, env.From, c, res)
		out = append(out, notices...)
		if err != nil {
			return out, s.ack(ctx, processed, err)
		}
	}
	return out, s.ack(ctx, processed, nil)
}

// Apply completes a delegated SMP step, then posts and reports it.
func (s *Service) Apply(ctx context.Context, d session.Deferred) ([]Notice, error) {
	c, ok := s.sessions.Lookup(d.Peer)
	if !ok {
		return nil, nil
	}
	res, err := c.Apply(d.Step)
	if err != nil {
		return nil, err
	}
	return s.handle(ctx, d.Peer, c, res)
}

func (s *Service) ack(ctx context.Context, n int, cause error) error {
	if n == 0 {
		return cause
	}
	if err := s.relay.AckEnvelopes(ctx, s.me, n); err != nil {
		if cause != nil {
			return cause
		}
		return fmt.Errorf("ack %d envelopes: %w", n, err)
	}
	return cause
}

func (s *Service) call(
	ctx context.Context,
	peer domain.Username,
	fn func(*conversation.Conversation) (conversation.Result, error),
) error {
	c, err := s.sessions.Get(peer)
	if err != nil {
		return err
	}
	res, err := fn(c)
	if err != nil {
		return err
	}
	_, err = s.handle(ctx, peer, c, res)
	return err
}

// handle posts res's frames to peer and turns its events into notices.
func (s *Service) handle(ctx context.Context, peer domain.Username, c *conversation.Conversation, res conversation.Result) ([]Notice, error) {
	for _, frame := range res.Outbound {
		env := domain.Envelope{From: s.me, To: peer, Frame: frame, Timestamp: s.now().Unix()}
		if err := s.relay.SendEnvelope(ctx, env); err != nil {
			return nil, fmt.Errorf("send to %s: %w", peer, err)
		}
	}

	out := make([]Notice, 0, len(res.Events))
	for _, ev := range res.Events {
		n := Notice{Peer: peer, Event: ev}
		switch ev.Kind {
		case domain.EventEncrypted:
			n.Fingerprint = c.PeerFingerprint()
			rec, ok, err := s.trust.LoadTrust(peer)
			if err != nil {
				return out, err
			}
			n.Verified = ok && rec.Fingerprint == n.Fingerprint
		case domain.EventSMPSucceeded:
			n.Fingerprint = c.PeerFingerprint()
			n.Verified = true
			if err := s.trust.SaveTrust(domain.TrustRecord{
				Peer:        peer,
				Fingerprint: n.Fingerprint,
				VerifiedUTC: s.now().UTC().Unix(),
			}); err != nil {
				return out, err
			}
			s.log.Printf("message: %s verified as %s", peer, n.Fingerprint)
		}
		out = append(out, n)
	}
	return out, nil
}
