package conversation

import (
	"context"
	"errors"
	"fmt"

	"offrecord/internal/domain"
	"offrecord/internal/domain/types"
	"offrecord/internal/protocol/keyring"
	"offrecord/internal/protocol/wire"
)

var (
	ErrMalformedFrame = fmt.Errorf("conversation: malformed frame: %w", domain.ErrProtocolViolation)
	ErrWrongInstance  = fmt.Errorf("conversation: frame for another instance: %w", domain.ErrProtocolViolation)
	ErrUnexpectedData = fmt.Errorf("conversation: data message outside an encrypted session: %w", domain.ErrProtocolViolation)
)

// ReceiveMessage processes one frame from the peer. ctx also bounds any SMP
// computation the frame starts.
func (c *Conversation) ReceiveMessage(ctx context.Context, frame []byte) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Result{}, ErrClosed
	}

	f, err := wire.Decode(frame)
	if err != nil {
		return c.drop(nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err))
	}
	if err := c.checkTags(f); err != nil {
		return c.drop(f.Message, err)
	}

	var res Result
	switch m := f.Message.(type) {
	case *wire.Query:
		err = c.onQuery(&res)
	case *wire.DHCommit, *wire.DHKey, *wire.RevealSignature, *wire.Signature:
		err = c.onAKE(f, &res)
	case *wire.Data:
		err = c.onData(ctx, f.Header(), m, &res)
	default:
		err = fmt.Errorf("%w: %T", ErrMalformedFrame, m)
	}
	if err != nil {
		return c.drop(f.Message, err)
	}
	return res, nil
}

func (c *Conversation) drop(m wire.Message, err error) (Result, error) {
	if m != nil {
		c.log.Printf("conversation: dropped %s in %s: %v", m.Tag(), c.state, err)
	} else {
		c.log.Printf("conversation: dropped frame: %v", err)
	}
	return Result{}, err
}

// checkTags enforces instance tags. Query and DH-Commit may be addressed to
// nobody yet and may come from a new peer instance while no session exists.
func (c *Conversation) checkTags(f wire.Frame) error {
	if !f.SenderTag.Valid() {
		return fmt.Errorf("%w: sender tag 0x%x", ErrWrongInstance, uint32(f.SenderTag))
	}
	opening := false
	switch f.Message.(type) {
	case *wire.Query, *wire.DHCommit:
		opening = true
	}
	if f.ReceiverTag != c.ourTag && !(opening && f.ReceiverTag == 0) {
		return fmt.Errorf("%w: receiver tag 0x%x", ErrWrongInstance, uint32(f.ReceiverTag))
	}
	if c.theirTag != 0 && f.SenderTag != c.theirTag {
		if !opening || c.state == types.MsgStateEncrypted {
			return fmt.Errorf("%w: sender tag 0x%x, talking to 0x%x", ErrWrongInstance, uint32(f.SenderTag), uint32(c.theirTag))
		}
		c.ake.Abort()
	}
	c.theirTag = f.SenderTag
	return nil
}

func (c *Conversation) onQuery(res *Result) error {
	commit, err := c.ake.Initiate()
	if err != nil {
		return err
	}
	b, err := c.frame(commit)
	if err != nil {
		return err
	}
	res.send(b)
	return nil
}

func (c *Conversation) onAKE(f wire.Frame, res *Result) error {
	reply, done, err := c.ake.Handle(f.SenderTag, f.Message)
	if err != nil {
		return err
	}
	if reply != nil {
		b, err := c.frame(reply)
		if err != nil {
			return err
		}
		res.send(b)
	}
	if done != nil {
		return c.establish(done, res)
	}
	return nil
}

func (c *Conversation) onData(ctx context.Context, h wire.Header, d *wire.Data, res *Result) error {
	quiet := d.Flags&wire.FlagIgnoreUnreadable != 0
	if c.state != types.MsgStateEncrypted {
		if quiet {
			c.log.Printf("conversation: ignored unreadable data in %s", c.state)
			return nil
		}
		return ErrUnexpectedData
	}

	plain, err := c.keys.Open(h, d)
	switch {
	case errors.Is(err, keyring.ErrReplay):
		c.log.Printf("conversation: replayed data counter %d", d.Counter)
		res.event(types.Event{Kind: types.EventReplay, Err: err})
		return nil
	case err != nil && quiet:
		c.log.Printf("conversation: ignored unreadable data: %v", err)
		return nil
	case err != nil:
		return err
	}

	p, err := wire.DecodePayload(plain)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if len(p.Text) > 0 {
		res.event(types.Event{Kind: types.EventMessage, Text: p.Text})
	}
	for _, tlv := range p.TLVs {
		switch {
		case tlv.Type == wire.TLVDisconnected:
			c.wipeSession()
			c.state = types.MsgStateFinished
			res.event(types.Event{Kind: types.EventFinished})
			return nil
		case wire.IsSMP(tlv.Type):
			c.onSMP(ctx, tlv, res)
		case tlv.Type == wire.TLVPadding:
		default:
			c.log.Printf("conversation: skipped TLV type %d", tlv.Type)
		}
	}
	return nil
}
