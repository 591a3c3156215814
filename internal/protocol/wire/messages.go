package wire

import (
	"encoding/binary"

	"offrecord/internal/domain"
)

// Message is the closed set of top-level messages. Only types in this
// package implement it.
type Message interface {
	Tag() Tag
	isMessage()
}

// Frame is a decoded message with its routing tags.
type Frame struct {
	SenderTag   domain.InstanceTag
	ReceiverTag domain.InstanceTag
	Message     Message
}

// Header returns the header Encode would write for f.
func (f Frame) Header() Header {
	return Header{
		Version:     ProtocolVersion,
		Tag:         f.Message.Tag(),
		SenderTag:   f.SenderTag,
		ReceiverTag: f.ReceiverTag,
	}
}

// Query asks the peer to start an AKE.
type Query struct {
	Versions []uint16 `cbor:"1,keyasint"`
}

// DHCommit commits to the initiator's DH public value without revealing it.
type DHCommit struct {
	EncryptedGx []byte `cbor:"1,keyasint"`
	HashedGx    []byte `cbor:"2,keyasint"`
}

// DHKey carries the responder's DH public value.
type DHKey struct {
	Gy []byte `cbor:"1,keyasint"`
}

// RevealSignature opens the commitment and carries the initiator's
// encrypted, MAC'd signature.
type RevealSignature struct {
	RevealedKey        []byte `cbor:"1,keyasint"`
	EncryptedSignature []byte `cbor:"2,keyasint"`
	MAC                []byte `cbor:"3,keyasint"`
}

// Signature carries the responder's encrypted, MAC'd signature.
type Signature struct {
	EncryptedSignature []byte `cbor:"1,keyasint"`
	MAC                []byte `cbor:"2,keyasint"`
}

// Data is an encrypted payload.
type Data struct {
	Flags           uint8    `cbor:"1,keyasint"`
	SenderKeyID     uint32   `cbor:"2,keyasint"`
	RecipientKeyID  uint32   `cbor:"3,keyasint"`
	NextDH          []byte   `cbor:"4,keyasint"`
	Counter         uint64   `cbor:"5,keyasint"`
	Ciphertext      []byte   `cbor:"6,keyasint"`
	MAC             []byte   `cbor:"7,keyasint"`
	RevealedMACKeys [][]byte `cbor:"8,keyasint,omitempty"`
}

// Data flags.
const (
	// FlagIgnoreUnreadable asks the receiver not to complain if it cannot
	// decrypt the message. Set on messages carrying only control TLVs.
	FlagIgnoreUnreadable uint8 = 0x01
)

// Authenticated returns the bytes covered by d.MAC: the frame header and every
// field except the MAC itself and the revealed keys.
func (d *Data) Authenticated(h Header) []byte {
	out := make([]byte, 0, HeaderSize+1+4+4+4+len(d.NextDH)+8+4+len(d.Ciphertext))
	out = append(out, h.Bytes()...)
	out = append(out, d.Flags)
	out = binary.BigEndian.AppendUint32(out, d.SenderKeyID)
	out = binary.BigEndian.AppendUint32(out, d.RecipientKeyID)
	out = binary.BigEndian.AppendUint32(out, uint32(len(d.NextDH)))
	out = append(out, d.NextDH...)
	out = binary.BigEndian.AppendUint64(out, d.Counter)
	out = binary.BigEndian.AppendUint32(out, uint32(len(d.Ciphertext)))
	out = append(out, d.Ciphertext...)
	return out
}

func (*Query) Tag() Tag           { return TagQuery }
func (*DHCommit) Tag() Tag        { return TagDHCommit }
func (*DHKey) Tag() Tag           { return TagDHKey }
func (*RevealSignature) Tag() Tag { return TagRevealSignature }
func (*Signature) Tag() Tag       { return TagSignature }
func (*Data) Tag() Tag            { return TagData }

func (*Query) isMessage()           {}
func (*DHCommit) isMessage()        {}
func (*DHKey) isMessage()           {}
func (*RevealSignature) isMessage() {}
func (*Signature) isMessage()       {}
func (*Data) isMessage()            {}
