package conversation

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"sync"

	"offrecord/internal/crypto"
	"offrecord/internal/crypto/modp"
	"offrecord/internal/domain"
	"offrecord/internal/domain/types"
	"offrecord/internal/protocol/ake"
	"offrecord/internal/protocol/keyring"
	"offrecord/internal/protocol/smp"
	"offrecord/internal/protocol/wire"
)

const deferredDepth = 16

var (
	ErrNotEncrypted = fmt.Errorf("conversation: not encrypted: %w", domain.ErrMisuse)
	ErrFinished     = fmt.Errorf("conversation: peer ended the session, end or reset it first: %w", domain.ErrMisuse)
	ErrNoQueue      = fmt.Errorf("conversation: not encrypted and queueing is disabled: %w", domain.ErrMisuse)
	ErrClosed       = fmt.Errorf("conversation: closed: %w", domain.ErrMisuse)
)

// Config carries the local identity and host integration knobs.
type Config struct {
	Identity domain.Identity
	// InstanceTag identifies this client. Zero picks a random valid tag.
	InstanceTag domain.InstanceTag
	// Executor runs SMP arithmetic. Nil means smp.Inline.
	Executor smp.Executor
	// QueueWhilePlaintext lets SendUserMessage hold text until the AKE
	// finishes instead of failing.
	QueueWhilePlaintext bool
	// Logger receives dispatch decisions. Nil discards.
	Logger *log.Logger
	// Rand feeds the AKE commitment and the instance tag. Nil means
	// crypto/rand.
	Rand  io.Reader
	Group *modp.Group
}

// Result lists what one call produced.
type Result struct {
	// Outbound holds encoded frames for the peer, in order.
	Outbound [][]byte
	Events   []types.Event
	// Queued is set when SendUserMessage held the text back.
	Queued bool
}

func (r *Result) send(b []byte) { r.Outbound = append(r.Outbound, b) }

func (r *Result) event(ev types.Event) { r.Events = append(r.Events, ev) }

// Conversation is the state of one conversation with one peer instance.
type Conversation struct {
	mu  sync.Mutex
	cfg Config
	log *log.Logger

	ourTag   domain.InstanceTag
	theirTag domain.InstanceTag
	state    types.MsgState

	ake  *ake.Engine
	keys *keyring.KeyRing
	smp  *smp.Engine

	peerFP  domain.Fingerprint
	trusted bool

	queue [][]byte

	deferred chan Delegated
	done     chan struct{}
	wg       sync.WaitGroup
	closed   bool
}

// New returns a conversation in PLAINTEXT.
func New(cfg Config) (*Conversation, error) {
	if cfg.Executor == nil {
		cfg.Executor = smp.Inline{}
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Reader
	}
	if cfg.Group == nil {
		cfg.Group = modp.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	tag := cfg.InstanceTag
	if tag == 0 {
		var err error
		if tag, err = randomTag(cfg.Rand); err != nil {
			return nil, err
		}
	}
	if !tag.Valid() {
		return nil, fmt.Errorf("conversation: instance tag 0x%x below 0x%x: %w", uint32(tag), uint32(types.MinInstanceTag), domain.ErrMisuse)
	}
	c := &Conversation{
		cfg:      cfg,
		log:      logger,
		ourTag:   tag,
		deferred: make(chan Delegated, deferredDepth),
		done:     make(chan struct{}),
	}
	c.ake = ake.New(ake.Config{Identity: cfg.Identity, InstanceTag: tag, Group: cfg.Group, Rand: cfg.Rand})
	return c, nil
}

func randomTag(r io.Reader) (domain.InstanceTag, error) {
	var b [4]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		if t := domain.InstanceTag(binary.BigEndian.Uint32(b[:])); t.Valid() {
			return t, nil
		}
	}
}

// InstanceTag returns our instance tag.
func (c *Conversation) InstanceTag() domain.InstanceTag { return c.ourTag }

// MessageState returns PLAINTEXT, ENCRYPTED or FINISHED.
func (c *Conversation) MessageState() types.MsgState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Trusted reports whether an SMP run succeeded in the current session.
func (c *Conversation) Trusted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trusted
}

// PeerFingerprint returns the fingerprint authenticated by the last AKE, or
// "" before one finished.
func (c *Conversation) PeerFingerprint() domain.Fingerprint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerFP
}

// Deferred delivers SMP computations that finished after the call that
// started them returned. Each must be passed to Apply, which seals its reply
// in send order.
func (c *Conversation) Deferred() <-chan Delegated { return c.deferred }

// Close wipes all key material and waits for delegated work to drain.
// Deferred is closed afterwards.
func (c *Conversation) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	c.wipeSession()
	c.ake.Abort()
	c.mu.Unlock()

	c.wg.Wait()
	close(c.deferred)
}

// StartHandshake returns a Query asking the peer to begin the AKE.
func (c *Conversation) StartHandshake() (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Result{}, ErrClosed
	}
	var res Result
	if err := c.query(&res); err != nil {
		return Result{}, err
	}
	return res, nil
}

// SendUserMessage encrypts text for the peer. In PLAINTEXT it queues the
// text and asks for an AKE when Config.QueueWhilePlaintext is set.
func (c *Conversation) SendUserMessage(text []byte) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Result{}, ErrClosed
	}

	var res Result
	switch c.state {
	case types.MsgStateEncrypted:
		b, err := c.seal(wire.Payload{Text: text}, 0)
		if err != nil {
			return Result{}, err
		}
		res.send(b)

	case types.MsgStatePlaintext:
		if !c.cfg.QueueWhilePlaintext {
			return Result{}, ErrNoQueue
		}
		c.queue = append(c.queue, append([]byte(nil), text...))
		res.Queued = true
		if c.ake.State() == ake.StateNone {
			if err := c.query(&res); err != nil {
				return Result{}, err
			}
		}

	case types.MsgStateFinished:
		return Result{}, ErrFinished
	}
	return res, nil
}

// InitiateSecretComparison starts an SMP run with secret, or answers the
// peer's pending SMP1 with it. question is only sent when starting.
func (c *Conversation) InitiateSecretComparison(ctx context.Context, secret []byte, question string) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Result{}, ErrClosed
	}
	if c.state != types.MsgStateEncrypted {
		return Result{}, ErrNotEncrypted
	}

	var (
		p   *smp.Pending
		err error
	)
	if c.smp.AwaitingSecret() {
		p, err = c.smp.Respond(secret)
	} else {
		p, err = c.smp.Start(secret, question)
	}
	if err != nil {
		return Result{}, err
	}
	c.trusted = false

	var res Result
	c.runSMP(ctx, p, &res)
	return res, nil
}

// AbortSecretComparison cancels the SMP run in progress and tells the peer.
func (c *Conversation) AbortSecretComparison() (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Result{}, ErrClosed
	}
	if c.state != types.MsgStateEncrypted {
		return Result{}, ErrNotEncrypted
	}
	var res Result
	if !c.smp.InProgress() {
		return res, nil
	}
	c.abortSMP(&res, nil)
	return res, nil
}

// EndSession tells the peer we are leaving and returns to PLAINTEXT.
func (c *Conversation) EndSession() (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Result{}, ErrClosed
	}

	var res Result
	switch c.state {
	case types.MsgStatePlaintext:
		return res, nil
	case types.MsgStateEncrypted:
		b, err := c.seal(wire.Payload{TLVs: []wire.TLV{{Type: wire.TLVDisconnected}}}, wire.FlagIgnoreUnreadable)
		if err != nil {
			return Result{}, err
		}
		res.send(b)
	case types.MsgStateFinished:
	}
	c.wipeSession()
	c.state = types.MsgStatePlaintext
	res.event(types.Event{Kind: types.EventPlaintext})
	return res, nil
}

// ResetSession drops all session state without telling the peer.
func (c *Conversation) ResetSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wipeSession()
	c.ake.Abort()
	c.queue = nil
	c.state = types.MsgStatePlaintext
}

func (c *Conversation) query(res *Result) error {
	b, err := wire.Encode(wire.Frame{
		SenderTag:   c.ourTag,
		ReceiverTag: c.theirTag,
		Message:     &wire.Query{Versions: []uint16{wire.ProtocolVersion}},
	})
	if err != nil {
		return err
	}
	res.send(b)
	return nil
}

// seal encrypts p under the current keys and encodes the Data frame.
func (c *Conversation) seal(p wire.Payload, flags uint8) ([]byte, error) {
	plain, err := wire.EncodePayload(p)
	if err != nil {
		return nil, err
	}
	h := wire.Header{Version: wire.ProtocolVersion, Tag: wire.TagData, SenderTag: c.ourTag, ReceiverTag: c.theirTag}
	d, err := c.keys.Seal(h, flags, plain)
	if err != nil {
		return nil, err
	}
	return wire.Encode(wire.Frame{SenderTag: c.ourTag, ReceiverTag: c.theirTag, Message: d})
}

func (c *Conversation) frame(m wire.Message) ([]byte, error) {
	return wire.Encode(wire.Frame{SenderTag: c.ourTag, ReceiverTag: c.theirTag, Message: m})
}

// establish installs the keys of a finished AKE and flushes queued text.
func (c *Conversation) establish(r *ake.Result, res *Result) error {
	keys, err := keyring.New(keyring.Config{
		Group:       c.cfg.Group,
		OurKeyID:    r.OurKeyID,
		OurKey:      r.OurKey,
		TheirKeyID:  r.TheirKeyID,
		TheirPublic: r.TheirPublic,
	})
	if err != nil {
		return err
	}
	c.wipeSession()

	ourFP := crypto.FingerprintBytes(c.cfg.Identity.EdPub)
	theirFP := crypto.FingerprintBytes(r.PeerPublicKey)
	c.keys = keys
	c.smp = smp.New(smp.Config{
		Group:            c.cfg.Group,
		SSID:             append([]byte(nil), r.SSID[:]...),
		OurFingerprint:   ourFP[:],
		TheirFingerprint: theirFP[:],
	})
	c.peerFP = r.PeerFingerprint
	c.state = types.MsgStateEncrypted
	c.log.Printf("conversation: encrypted with %s (instance 0x%x)", c.peerFP, uint32(c.theirTag))

	res.event(types.Event{Kind: types.EventAKESuccess})
	res.event(types.Event{Kind: types.EventEncrypted})

	queued := c.queue
	c.queue = nil
	for _, text := range queued {
		b, err := c.seal(wire.Payload{Text: text}, 0)
		if err != nil {
			return err
		}
		res.send(b)
	}
	return nil
}

// wipeSession forgets the encrypted session. The AKE engine is left alone.
func (c *Conversation) wipeSession() {
	if c.keys != nil {
		c.keys.Wipe()
		c.keys = nil
	}
	if c.smp != nil {
		c.smp.Wipe()
		c.smp = nil
	}
	c.trusted = false
	c.peerFP = ""
}
