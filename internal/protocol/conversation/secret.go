package conversation

import (
	"context"
	"errors"

	"offrecord/internal/domain/types"
	"offrecord/internal/protocol/smp"
	"offrecord/internal/protocol/wire"
)

// Delegated is an SMP computation that finished after the call that started
// it returned. Pass it to Apply.
type Delegated struct {
	eng *smp.Engine
	p   *smp.Pending
	r   smp.Result
	ok  bool
}

// errAbandoned is attached to the abort event when a delegated computation
// never came back.
var errAbandoned = errors.New("conversation: smp computation abandoned")

func (c *Conversation) onSMP(ctx context.Context, tlv wire.TLV, res *Result) {
	msg, err := wire.DecodeSMP(tlv)
	if err != nil {
		c.abortSMP(res, err)
		return
	}
	if _, ok := msg.(*wire.SMPAbort); ok {
		c.smp.Abort()
		c.trusted = false
		res.event(types.Event{Kind: types.EventSMPAborted})
		return
	}
	p, err := c.smp.Receive(msg)
	if err != nil {
		c.abortSMP(res, err)
		return
	}
	c.runSMP(ctx, p, res)
}

// runSMP hands p to the executor. A result that is already available is
// applied to res; otherwise a goroutine waits for it and posts it on
// Deferred for the host to Apply.
func (c *Conversation) runSMP(ctx context.Context, p *smp.Pending, res *Result) {
	ch := c.cfg.Executor.Execute(ctx, p.Computation)
	select {
	case r, ok := <-ch:
		c.completeSMP(c.smp, p, r, ok, res)
	default:
		c.wg.Add(1)
		go c.await(ctx, c.smp, p, ch)
	}
}

// await posts the finished computation unapplied. Nothing is sealed here:
// the reply takes its counter when the host calls Apply.
func (c *Conversation) await(ctx context.Context, eng *smp.Engine, p *smp.Pending, ch <-chan smp.Result) {
	defer c.wg.Done()
	d := Delegated{eng: eng, p: p}
	select {
	case d.r, d.ok = <-ch:
	case <-ctx.Done():
	case <-c.done:
		return
	}
	select {
	case c.deferred <- d:
	case <-c.done:
	}
}

// Apply completes a delegated SMP step received from Deferred and returns
// the frames and events it produces. Steps from an abandoned run, a replaced
// session or another conversation yield an empty Result.
func (c *Conversation) Apply(d Delegated) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Result{}, ErrClosed
	}
	var res Result
	c.completeSMP(d.eng, d.p, d.r, d.ok, &res)
	return res, nil
}

// completeSMP applies a finished computation. eng is the engine the run was
// started on; a result for a replaced engine is dropped.
func (c *Conversation) completeSMP(eng *smp.Engine, p *smp.Pending, r smp.Result, ok bool, res *Result) {
	if eng == nil || eng != c.smp || c.state != types.MsgStateEncrypted {
		c.log.Printf("conversation: dropped smp result for an ended session")
		return
	}
	if !ok {
		if eng.Current(p) {
			c.abortSMP(res, errAbandoned)
		}
		return
	}

	step, err := eng.Complete(p, r)
	switch {
	case errors.Is(err, smp.ErrStale):
		c.log.Printf("conversation: dropped stale smp result")
		return
	case err != nil:
		c.abortSMP(res, err)
		return
	}

	if step.Reply != nil {
		if err := c.sendSMP(step.Reply, res); err != nil {
			c.abortSMP(res, err)
			return
		}
	}
	switch step.Outcome {
	case smp.OutcomeQuestion:
		res.event(types.Event{Kind: types.EventSMPQuestion, Question: step.Question})
	case smp.OutcomeSuccess:
		c.trusted = true
		res.event(types.Event{Kind: types.EventSMPSucceeded})
	case smp.OutcomeMismatch:
		c.trusted = false
		res.event(types.Event{Kind: types.EventSMPFailed})
	case smp.OutcomeNone:
	}
}

// abortSMP resets the SMP engine and sends SMP-Abort. The encrypted session
// is kept.
func (c *Conversation) abortSMP(res *Result, cause error) {
	if cause != nil {
		c.log.Printf("conversation: smp aborted: %v", cause)
	}
	c.smp.Abort()
	c.trusted = false
	if err := c.sendSMP(&wire.SMPAbort{}, res); err != nil {
		c.log.Printf("conversation: sending smp abort: %v", err)
	}
	res.event(types.Event{Kind: types.EventSMPAborted, Err: cause})
}

func (c *Conversation) sendSMP(m wire.SMPMessage, res *Result) error {
	tlv, err := wire.EncodeSMP(m)
	if err != nil {
		return err
	}
	b, err := c.seal(wire.Payload{TLVs: []wire.TLV{tlv}}, wire.FlagIgnoreUnreadable)
	if err != nil {
		return err
	}
	res.send(b)
	return nil
}
