package interfaces

import (
	"context"

	domaintypes "offrecord/internal/domain/types"
)

// RelayClient is how we talk to the mailbox relay, all with context.
type RelayClient interface {
	SendEnvelope(ctx context.Context, envelope domaintypes.Envelope) error
	FetchEnvelopes(
		ctx context.Context,
		username domaintypes.Username,
		limit int,
	) ([]domaintypes.Envelope, error)
	AckEnvelopes(ctx context.Context, username domaintypes.Username, count int) error
}
