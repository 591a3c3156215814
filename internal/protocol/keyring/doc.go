// Package keyring manages the rolling DH keys of an encrypted session and
// turns payloads into Data messages and back.
//
// Each side keeps its two newest DH keys and the peer's two newest public
// values. Every (ours, theirs) pair yields its own AES and MAC keys. A
// message names the pair it was sent under by key id and advertises the
// sender's newest public value in NextDH; once a key has been seen in use by
// the peer, the side that owns it moves on to a fresh one. Old pairs are
// forgotten, and the MAC keys they received under are published in the next
// outgoing message so past transcripts stay deniable.
//
// Concurrency: KeyRing is NOT safe for concurrent use. Callers must
// serialise access per conversation.
package keyring
