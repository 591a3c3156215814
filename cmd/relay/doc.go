// Command relay is the mailbox server offrecord clients talk through.
//
// Each user has a FIFO of envelopes held in memory. Clients post frames to
// the peer's mailbox, list their own, and acknowledge a prefix once it has
// been fed to their conversations:
//
//	POST /msg/{user}                 enqueue (Timestamp 0 is stamped now)
//	GET  /msg/{user}?limit=N         list without removing; no limit lists all
//	POST /msg/{user}/ack {"count":N} drop the first N, clearing on overflow
//
// Everything is lost on exit. Requests are access-logged to stderr. The
// relay only ever sees AKE messages and encrypted data frames, never
// plaintext or private keys.
//
// Usage:
//
//	relay [-addr :8080]
package main
