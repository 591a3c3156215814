package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"offrecord/internal/domain"
	"offrecord/internal/services/message"
)

const talkHelp = `Type a line to send it. Commands:
  /smp <secret> [question]  start a secret comparison, or answer the peer's
  /abort                    cancel the comparison in progress
  /end                      end the encrypted session
  /quit                     end the session and exit`

func talkCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "talk <peer>",
		Short: "Chat with a peer through the relay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			client, err := appCtx.Open(passphrase)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			t := &talker{
				peer: domain.Username(args[0]),
				svc:  client.Messages,
				out:  cmd.OutOrStdout(),
			}
			fmt.Fprintf(t.out, "You are %s (%s).\n%s\n", client.Username, client.Fingerprint, talkHelp)
			if err := t.do(ctx, func(ctx context.Context) error { return t.svc.Connect(ctx, t.peer) }); err != nil {
				return err
			}

			lines := make(chan string)
			go scanLines(cmd.InOrStdin(), lines)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return t.quit()
				case line, ok := <-lines:
					if !ok {
						return t.quit()
					}
					done, err := t.line(ctx, line)
					if err != nil {
						fmt.Fprintf(t.out, "! %v\n", err)
					}
					if done {
						return nil
					}
				case d, ok := <-client.Sessions.Deferred():
					if !ok {
						return nil
					}
					err := t.do(ctx, func(ctx context.Context) error {
						ns, err := t.svc.Apply(ctx, d)
						t.show(ns)
						return err
					})
					if err != nil {
						fmt.Fprintf(t.out, "! %v\n", err)
					}
				case <-ticker.C:
					err := t.do(ctx, func(ctx context.Context) error {
						ns, err := t.svc.Poll(ctx, 0)
						t.show(ns)
						return err
					})
					if err != nil {
						fmt.Fprintf(t.out, "! poll: %v\n", err)
					}
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "poll", time.Second, "how often to fetch from the relay")
	return cmd
}

type talker struct {
	peer domain.Username
	svc  *message.Service
	out  io.Writer
}

// do runs fn with the per-request timeout.
func (t *talker) do(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

func (t *talker) line(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	switch fields[0] {
	case "/smp":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /smp <secret> [question]")
		}
		question := strings.Join(fields[2:], " ")
		return false, t.do(ctx, func(ctx context.Context) error {
			ns, err := t.svc.Compare(ctx, t.peer, []byte(fields[1]), question)
			t.show(ns)
			return err
		})
	case "/abort":
		return false, t.do(ctx, func(ctx context.Context) error { return t.svc.AbortCompare(ctx, t.peer) })
	case "/end":
		return false, t.do(ctx, func(ctx context.Context) error { return t.svc.End(ctx, t.peer) })
	case "/quit":
		return true, t.quit()
	}
	return false, t.do(ctx, func(ctx context.Context) error {
		queued, err := t.svc.Send(ctx, t.peer, []byte(line))
		if err == nil && queued {
			fmt.Fprintln(t.out, "(queued until the session is encrypted)")
		}
		return err
	})
}

func (t *talker) quit() error {
	return t.do(context.Background(), func(ctx context.Context) error { return t.svc.End(ctx, t.peer) })
}

func (t *talker) show(ns []message.Notice) {
	for _, n := range ns {
		ev := n.Event
		switch ev.Kind {
		case domain.EventMessage:
			fmt.Fprintf(t.out, "[%s] %s\n", n.Peer, ev.Text)
		case domain.EventEncrypted:
			state := "unverified"
			if n.Verified {
				state = "verified"
			}
			fmt.Fprintf(t.out, "* encrypted with %s, fingerprint %s (%s)\n", n.Peer, n.Fingerprint, state)
		case domain.EventSMPQuestion:
			if ev.Question != "" {
				fmt.Fprintf(t.out, "* %s asks: %q. Answer with /smp <secret>\n", n.Peer, ev.Question)
			} else {
				fmt.Fprintf(t.out, "* %s wants to compare secrets. Answer with /smp <secret>\n", n.Peer)
			}
		case domain.EventSMPSucceeded:
			fmt.Fprintf(t.out, "* secrets match, %s is verified\n", n.Peer)
		case domain.EventSMPFailed:
			fmt.Fprintf(t.out, "* secrets do not match\n")
		case domain.EventSMPAborted:
			if ev.Err != nil {
				fmt.Fprintf(t.out, "* comparison aborted: %v\n", ev.Err)
			} else {
				fmt.Fprintln(t.out, "* comparison aborted")
			}
		case domain.EventFinished:
			fmt.Fprintf(t.out, "* %s ended the session, /end to acknowledge\n", n.Peer)
		case domain.EventPlaintext:
			fmt.Fprintln(t.out, "* session ended")
		case domain.EventError, domain.EventReplay:
			fmt.Fprintf(t.out, "! %s: %v\n", ev.Kind, ev.Err)
		}
	}
}

func scanLines(r io.Reader, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		out <- sc.Text()
	}
}
