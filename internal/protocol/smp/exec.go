package smp

import "context"

// Computation is one step's arithmetic with its inputs copied in.
type Computation interface {
	Compute() Result
}

// Result is the opaque output of a Computation. Only Complete can read it.
type Result struct {
	out output
	err error
}

// Err reports whether the computation rejected its input, e.g. a failed
// proof.
func (r Result) Err() error { return r.err }

// Executor runs computations. The returned channel yields at most one
// Result; it may be closed without one if ctx ends first.
type Executor interface {
	Execute(ctx context.Context, c Computation) <-chan Result
}

// Inline runs computations on the calling goroutine. Its channel is always
// ready when Execute returns.
type Inline struct{}

func (Inline) Execute(ctx context.Context, c Computation) <-chan Result {
	ch := make(chan Result, 1)
	if ctx.Err() == nil {
		ch <- c.Compute()
	}
	close(ch)
	return ch
}

// Run executes p on exec and blocks for the result. ok is false if ctx ended
// before a result was produced.
func Run(ctx context.Context, exec Executor, p *Pending) (r Result, ok bool) {
	select {
	case r, ok = <-exec.Execute(ctx, p.Computation):
		return r, ok
	case <-ctx.Done():
		return Result{}, false
	}
}
