package app

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"offrecord/internal/crypto"
	"offrecord/internal/domain"
	messagesvc "offrecord/internal/services/message"
	sessionsvc "offrecord/internal/services/session"
	"offrecord/internal/worker"
)

var (
	ErrNoRelay    = errors.New("no relay configured, use --relay")
	ErrNoUsername = errors.New("--username required")
)

// Client is an unlocked identity attached to a relay mailbox.
type Client struct {
	Username    domain.Username
	InstanceTag domain.InstanceTag
	Fingerprint domain.Fingerprint

	Sessions *sessionsvc.Service
	Messages *messagesvc.Service

	pool *worker.Pool
}

// Open unlocks the identity and starts the conversation table. The instance
// tag for (relay, username) is created on first use and reused afterwards.
func (w *Wire) Open(passphrase string) (*Client, error) {
	if w.Relay == nil {
		return nil, ErrNoRelay
	}
	if w.cfg.Username == "" {
		return nil, ErrNoUsername
	}
	me := domain.Username(w.cfg.Username)

	id, err := w.IDs.LoadIdentity(passphrase)
	if err != nil {
		return nil, err
	}
	tag, err := w.instanceTag(me)
	if err != nil {
		return nil, err
	}

	pool := worker.New(w.cfg.Workers)
	sessions := sessionsvc.New(sessionsvc.Config{
		Identity:            id,
		InstanceTag:         tag,
		Executor:            pool,
		QueueWhilePlaintext: true,
		Logger:              w.cfg.Logger,
	})
	return &Client{
		Username:    me,
		InstanceTag: tag,
		Fingerprint: crypto.Fingerprint(id.EdPub),
		Sessions:    sessions,
		Messages:    messagesvc.New(me, sessions, w.Relay, w.Trust, w.cfg.Logger),
		pool:        pool,
	}, nil
}

// Close ends every conversation and stops the worker pool.
func (c *Client) Close() {
	c.Sessions.Close()
	c.pool.Close()
}

func (w *Wire) instanceTag(me domain.Username) (domain.InstanceTag, error) {
	profile, ok, err := w.Accounts.LoadAccountProfile(w.cfg.RelayURL, me)
	if err != nil {
		return 0, err
	}
	if ok && profile.InstanceTag.Valid() {
		return profile.InstanceTag, nil
	}
	tag, err := randomTag()
	if err != nil {
		return 0, err
	}
	profile = domain.AccountProfile{ServerURL: w.cfg.RelayURL, Username: me, InstanceTag: tag}
	if err := w.Accounts.SaveAccountProfile(profile); err != nil {
		return 0, fmt.Errorf("save account profile: %w", err)
	}
	return tag, nil
}

func randomTag() (domain.InstanceTag, error) {
	var b [4]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			return 0, err
		}
		if t := domain.InstanceTag(binary.BigEndian.Uint32(b[:])); t.Valid() {
			return t, nil
		}
	}
}
