// Package conversation coordinates one encrypted conversation with one peer
// instance: it routes frames to the AKE, the key ring and the SMP engine
// depending on the message state, and reports what happened as events.
//
// A Conversation never touches the network. Every call returns a Result
// listing the frames the host must deliver to the peer and the events it
// should surface to the user:
//
//	res, err := conv.ReceiveMessage(ctx, frame)
//	for _, out := range res.Outbound { transport.Send(out) }
//	for _, ev := range res.Events { ui.Show(ev) }
//
// A returned error means the frame was dropped; errors.Is against the
// domain sentinels tells protocol errors from local misuse.
//
// # Delegated SMP work
//
// SMP arithmetic runs on Config.Executor. When the executor answers
// immediately the step completes inside the call. Otherwise the call returns
// and the finished computation is delivered later on Deferred; the host
// passes it to Apply, which completes the step and encrypts its reply at
// that point, so data counters follow the order frames leave. Aborting,
// ending or re-keying the session in the meantime makes the late result a
// no-op.
//
// Concurrency: Conversation is safe for concurrent use; calls are
// serialised. Distinct conversations share nothing.
package conversation
