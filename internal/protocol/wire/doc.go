// Package wire defines every message exchanged by two conversations and its
// byte encoding.
//
// A frame is a fixed 11-byte header followed by a CBOR body:
//
//	+---------+-----+------------+--------------+------------+
//	| version | tag | sender tag | receiver tag |    body    |
//	|  u16    | u8  |    u32     |     u32      |   CBOR     |
//	+---------+-----+------------+--------------+------------+
//
// The tag selects one of the Message variants. Encrypted Data messages carry
// a Payload once decrypted: user text plus TLV records, some of which hold
// SMP sub-messages (the SMPMessage variants).
//
// Group elements and exponents travel as opaque fixed-width byte strings;
// validating them is the job of the protocol package that consumes them.
package wire
