// Package smp implements the Socialist Millionaires' Protocol: two parties
// learn whether they hold the same secret and nothing else.
//
// Each side's secret is hashed together with both fingerprints and the
// session id, so a successful comparison also proves that nobody sits in the
// middle of the AKE that produced the session.
//
// # Delegation
//
// The arithmetic behind one step costs a few dozen 1536-bit
// exponentiations. Every transition is therefore split in three:
//
//	p, err := e.Receive(msg)          // validate state, snapshot inputs
//	res := <-exec.Execute(ctx, p.Computation) // pure, may run elsewhere
//	step, err := e.Complete(p, res)   // apply if still current
//
// Abort or a restart bumps the run number, so a result computed for an
// abandoned run is refused with ErrStale and changes nothing.
//
// Concurrency: Engine is NOT safe for concurrent use. A Computation touches
// no engine state and may run on any goroutine.
package smp
