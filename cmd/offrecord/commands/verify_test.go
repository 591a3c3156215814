package commands

import (
	"context"
	"testing"
	"time"

	"offrecord/internal/domain"
	"offrecord/internal/protocol/smp"
	"offrecord/internal/worker"
)

func TestRunVerify(t *testing.T) {
	pool := worker.New(2)
	defer pool.Close()

	cases := []struct {
		name   string
		exec   smp.Executor
		a, b   string
		want   domain.EventKind
		trusts bool
	}{
		{"inline match", smp.Inline{}, "applesAndOranges", "applesAndOranges", domain.EventSMPSucceeded, true},
		{"pool match", pool, "applesAndOranges", "applesAndOranges", domain.EventSMPSucceeded, true},
		{"pool mismatch", pool, "applesAndOranges", "bananasAndPears", domain.EventSMPFailed, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			rep, err := runVerify(ctx, tc.exec, nil, []byte(tc.a), []byte(tc.b), "What is difference?")
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if rep.outcome != tc.want {
				t.Fatalf("outcome = %s, want %s", rep.outcome, tc.want)
			}
			if rep.aliceTrusted != tc.trusts || rep.bobTrusted != tc.trusts {
				t.Fatalf("trusted = %t/%t, want %t", rep.aliceTrusted, rep.bobTrusted, tc.trusts)
			}
			if rep.question != "What is difference?" {
				t.Fatalf("question = %q", rep.question)
			}
			if rep.alice == rep.bob {
				t.Fatal("identities share a fingerprint")
			}
		})
	}
}
