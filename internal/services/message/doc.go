// Package message moves protocol frames between conversations and the relay.
//
// Every frame a conversation produces is posted as an envelope; fetched
// envelopes are fed back in order and acknowledged once consumed. A
// successful secret comparison is recorded in the trust store.
package message
