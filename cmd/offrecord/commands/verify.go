package commands

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"offrecord/internal/crypto"
	"offrecord/internal/domain"
	"offrecord/internal/domain/types"
	"offrecord/internal/protocol/conversation"
	"offrecord/internal/protocol/smp"
	"offrecord/internal/worker"
)

func verifyCmd() *cobra.Command {
	var (
		secretA, secretB, question string
		workers                    int
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run the AKE and a secret comparison between two local identities",
		Long: "verify creates two throwaway identities, connects them in memory and " +
			"compares --secret-a with --secret-b. Nothing is read from or written to --home.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secretB == "" {
				secretB = secretA
			}
			pool := worker.New(workers)
			defer pool.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			var logger *log.Logger
			if verbose {
				logger = log.New(cmd.ErrOrStderr(), "", log.Ltime)
			}
			rep, err := runVerify(ctx, pool, logger, []byte(secretA), []byte(secretB), question)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "alice %s\nbob   %s\n", rep.alice, rep.bob)
			if rep.question != "" {
				fmt.Fprintf(out, "bob was asked: %q\n", rep.question)
			}
			fmt.Fprintf(out, "outcome: %s (alice trusted=%t, bob trusted=%t)\n",
				rep.outcome, rep.aliceTrusted, rep.bobTrusted)
			return nil
		},
	}
	cmd.Flags().StringVar(&secretA, "secret-a", "", "initiator's secret")
	cmd.Flags().StringVar(&secretB, "secret-b", "", "responder's secret (default: same as --secret-a)")
	cmd.Flags().StringVar(&question, "question", "", "optional question shown to the responder")
	cmd.Flags().IntVar(&workers, "workers", 0, "SMP worker goroutines (0: one per CPU)")
	_ = cmd.MarkFlagRequired("secret-a")
	return cmd
}

type verifyReport struct {
	alice, bob               domain.Fingerprint
	question                 string
	outcome                  domain.EventKind
	aliceTrusted, bobTrusted bool
}

type frame struct {
	to   int
	data []byte
}

// pair is two conversations joined by an in-memory link.
type pair struct {
	convs  [2]*conversation.Conversation
	queue  []frame
	events [2][]domain.Event
}

func (p *pair) take(from int, res conversation.Result) {
	p.events[from] = append(p.events[from], res.Events...)
	for _, b := range res.Outbound {
		p.queue = append(p.queue, frame{to: 1 - from, data: b})
	}
}

func (p *pair) find(side int, kinds ...domain.EventKind) (domain.Event, bool) {
	for _, ev := range p.events[side] {
		for _, k := range kinds {
			if ev.Kind == k {
				return ev, true
			}
		}
	}
	return domain.Event{}, false
}

// settle delivers frames and deferred SMP steps until done holds.
func (p *pair) settle(ctx context.Context, done func() bool) error {
	for {
		for len(p.queue) > 0 {
			f := p.queue[0]
			p.queue = p.queue[1:]
			res, err := p.convs[f.to].ReceiveMessage(ctx, f.data)
			if err != nil {
				return err
			}
			p.take(f.to, res)
		}
		if done() {
			return nil
		}
		var (
			side int
			d    conversation.Delegated
		)
		select {
		case d = <-p.convs[0].Deferred():
		case d = <-p.convs[1].Deferred():
			side = 1
		case <-ctx.Done():
			return ctx.Err()
		}
		res, err := p.convs[side].Apply(d)
		if err != nil {
			return err
		}
		p.take(side, res)
	}
}

func runVerify(ctx context.Context, exec smp.Executor, logger *log.Logger, secretA, secretB []byte, question string) (verifyReport, error) {
	var (
		p   pair
		rep verifyReport
	)
	for i := range p.convs {
		priv, pub, err := crypto.GenerateEd25519()
		if err != nil {
			return rep, err
		}
		c, err := conversation.New(conversation.Config{
			Identity: domain.Identity{EdPub: pub, EdPriv: priv},
			Executor: exec,
			Logger:   logger,
		})
		if err != nil {
			return rep, err
		}
		defer c.Close()
		p.convs[i] = c
		if i == 0 {
			rep.alice = crypto.Fingerprint(pub)
		} else {
			rep.bob = crypto.Fingerprint(pub)
		}
	}
	alice, bob := p.convs[0], p.convs[1]

	res, err := alice.StartHandshake()
	if err != nil {
		return rep, err
	}
	p.take(0, res)
	if err := p.settle(ctx, func() bool {
		return alice.MessageState() == types.MsgStateEncrypted && bob.MessageState() == types.MsgStateEncrypted
	}); err != nil {
		return rep, fmt.Errorf("ake: %w", err)
	}

	res, err = alice.InitiateSecretComparison(ctx, secretA, question)
	if err != nil {
		return rep, err
	}
	p.take(0, res)
	if err := p.settle(ctx, func() bool {
		_, ok := p.find(1, domain.EventSMPQuestion, domain.EventSMPAborted)
		return ok
	}); err != nil {
		return rep, fmt.Errorf("smp: %w", err)
	}
	ev, _ := p.find(1, domain.EventSMPQuestion, domain.EventSMPAborted)
	if ev.Kind == domain.EventSMPAborted {
		return rep, errors.New("smp: aborted before the responder was asked")
	}
	rep.question = ev.Question

	res, err = bob.InitiateSecretComparison(ctx, secretB, "")
	if err != nil {
		return rep, err
	}
	p.take(1, res)
	final := []domain.EventKind{domain.EventSMPSucceeded, domain.EventSMPFailed, domain.EventSMPAborted}
	if err := p.settle(ctx, func() bool {
		_, a := p.find(0, final...)
		_, b := p.find(1, final...)
		return a && b
	}); err != nil {
		return rep, fmt.Errorf("smp: %w", err)
	}
	ev, _ = p.find(0, final...)
	rep.outcome = ev.Kind
	rep.aliceTrusted, rep.bobTrusted = alice.Trusted(), bob.Trusted()
	return rep, nil
}
