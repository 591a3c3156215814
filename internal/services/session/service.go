package session

import (
	"fmt"
	"io"
	"log"
	"sort"
	"sync"

	"offrecord/internal/domain"
	"offrecord/internal/protocol/conversation"
	"offrecord/internal/protocol/smp"
)

// ErrClosed is returned by Get after Close.
var ErrClosed = fmt.Errorf("session: table closed: %w", domain.ErrMisuse)

// Config is applied to every conversation the table creates.
type Config struct {
	Identity domain.Identity
	// InstanceTag is shared by all conversations of this client. Zero picks
	// one at random per conversation.
	InstanceTag         domain.InstanceTag
	Executor            smp.Executor
	QueueWhilePlaintext bool
	Logger              *log.Logger
}

// Deferred is a delegated SMP step from the conversation with Peer, still
// to be applied.
type Deferred struct {
	Peer domain.Username
	Step conversation.Delegated
}

// Service is the per-peer conversation table.
type Service struct {
	cfg Config
	log *log.Logger

	mu     sync.Mutex
	convs  map[domain.Username]*conversation.Conversation
	closed bool

	deferred chan Deferred
	done     chan struct{}
	wg       sync.WaitGroup
}

// New returns an empty table.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{
		cfg:      cfg,
		log:      logger,
		convs:    make(map[domain.Username]*conversation.Conversation),
		deferred: make(chan Deferred, 16),
		done:     make(chan struct{}),
	}
}

// Get returns the conversation with peer, creating it in PLAINTEXT on first
// use.
func (s *Service) Get(peer domain.Username) (*conversation.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if c, ok := s.convs[peer]; ok {
		return c, nil
	}

	c, err := conversation.New(conversation.Config{
		Identity:            s.cfg.Identity,
		InstanceTag:         s.cfg.InstanceTag,
		Executor:            s.cfg.Executor,
		QueueWhilePlaintext: s.cfg.QueueWhilePlaintext,
		Logger:              log.New(s.log.Writer(), s.log.Prefix()+string(peer)+": ", s.log.Flags()),
	})
	if err != nil {
		return nil, err
	}
	s.convs[peer] = c
	s.wg.Add(1)
	go s.forward(peer, c)
	return c, nil
}

// Lookup returns the conversation with peer if one exists.
func (s *Service) Lookup(peer domain.Username) (*conversation.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[peer]
	return c, ok
}

// Peers lists the peers with a conversation, sorted.
func (s *Service) Peers() []domain.Username {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Username, 0, len(s.convs))
	for p := range s.convs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Forget closes and removes the conversation with peer.
func (s *Service) Forget(peer domain.Username) {
	s.mu.Lock()
	c, ok := s.convs[peer]
	delete(s.convs, peer)
	s.mu.Unlock()
	if ok {
		c.Close()
	}
}

// Deferred delivers delegated SMP steps from every conversation. It is
// closed by Close.
func (s *Service) Deferred() <-chan Deferred { return s.deferred }

// Close closes every conversation and waits for their delegated work.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	convs := s.convs
	s.convs = nil
	s.mu.Unlock()

	for _, c := range convs {
		c.Close()
	}
	s.wg.Wait()
	close(s.deferred)
}

func (s *Service) forward(peer domain.Username, c *conversation.Conversation) {
	defer s.wg.Done()
	for d := range c.Deferred() {
		select {
		case s.deferred <- Deferred{Peer: peer, Step: d}:
		case <-s.done:
		}
	}
}
