// Package relay provides an HTTP implementation of domain.RelayClient.
//
// The relay is a store-and-forward mailbox. It queues opaque protocol frames
// per recipient and never sees plaintext or keys.
//
// Supported operations:
//   - Posting an envelope to a peer's mailbox.
//   - Fetching pending envelopes for a user.
//   - Acknowledging the envelopes consumed so far.
//
// All requests are JSON over HTTP and take a context for cancellation and
// deadlines. Non-2xx statuses come back as *StatusError.
package relay
