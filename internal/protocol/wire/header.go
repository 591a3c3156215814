package wire

import (
	"encoding/binary"
	"fmt"

	"offrecord/internal/domain"
)

// ProtocolVersion is the only version this package speaks.
const ProtocolVersion uint16 = 3

// HeaderSize is the encoded size of Header.
const HeaderSize = 11

// Tag is the one-byte message discriminant.
type Tag uint8

const (
	TagQuery           Tag = 0x01
	TagDHCommit        Tag = 0x02
	TagData            Tag = 0x03
	TagDHKey           Tag = 0x0a
	TagRevealSignature Tag = 0x11
	TagSignature       Tag = 0x12
)

func (t Tag) String() string {
	switch t {
	case TagQuery:
		return "Query"
	case TagDHCommit:
		return "DH-Commit"
	case TagData:
		return "Data"
	case TagDHKey:
		return "DH-Key"
	case TagRevealSignature:
		return "Reveal-Signature"
	case TagSignature:
		return "Signature"
	default:
		return fmt.Sprintf("Tag(0x%02x)", uint8(t))
	}
}

// Header is the fixed prefix of every frame.
type Header struct {
	Version     uint16
	Tag         Tag
	SenderTag   domain.InstanceTag
	ReceiverTag domain.InstanceTag
}

// Bytes returns the 11-byte encoding of h.
func (h Header) Bytes() []byte {
	b := make([]byte, HeaderSize)
	binary.BigEndian.PutUint16(b[0:2], h.Version)
	b[2] = byte(h.Tag)
	binary.BigEndian.PutUint32(b[3:7], uint32(h.SenderTag))
	binary.BigEndian.PutUint32(b[7:11], uint32(h.ReceiverTag))
	return b
}

// ParseHeader reads the header at the start of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrShortFrame
	}
	h := Header{
		Version:     binary.BigEndian.Uint16(b[0:2]),
		Tag:         Tag(b[2]),
		SenderTag:   domain.InstanceTag(binary.BigEndian.Uint32(b[3:7])),
		ReceiverTag: domain.InstanceTag(binary.BigEndian.Uint32(b[7:11])),
	}
	if h.Version != ProtocolVersion {
		return Header{}, fmt.Errorf("%w %d", ErrUnknownVersion, h.Version)
	}
	return h, nil
}
