package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

var (
	// ErrShortFrame is returned for input shorter than a header.
	ErrShortFrame = errors.New("wire: frame shorter than header")
	// ErrUnknownVersion is returned for frames from another protocol version.
	ErrUnknownVersion = errors.New("wire: unsupported protocol version")
	// ErrUnknownTag is returned for an unrecognised message tag.
	ErrUnknownTag = errors.New("wire: unknown message tag")
	// ErrNotSMP is returned when a TLV does not hold an SMP sub-message.
	ErrNotSMP = errors.New("wire: TLV is not an SMP message")
)

// Marshal encodes v with the deterministic CBOR profile used on the wire.
// Protocol packages use it for the blobs they encrypt or sign.
func Marshal(v any) ([]byte, error) { return encMode.Marshal(v) }

// Unmarshal decodes CBOR produced by Marshal. Unknown fields, duplicate keys
// and trailing bytes are errors.
func Unmarshal(b []byte, v any) error { return decMode.Unmarshal(b, v) }

// Encode serialises f.
func Encode(f Frame) ([]byte, error) {
	if f.Message == nil {
		return nil, fmt.Errorf("wire: encode: nil message")
	}
	body, err := Marshal(f.Message)
	if err != nil {
		return nil, fmt.Errorf("wire: encode %s: %w", f.Message.Tag(), err)
	}
	h := Header{
		Version:     ProtocolVersion,
		Tag:         f.Message.Tag(),
		SenderTag:   f.SenderTag,
		ReceiverTag: f.ReceiverTag,
	}
	return append(h.Bytes(), body...), nil
}

// Decode parses a complete frame.
func Decode(b []byte) (Frame, error) {
	h, err := ParseHeader(b)
	if err != nil {
		return Frame{}, err
	}
	msg, err := newMessage(h.Tag)
	if err != nil {
		return Frame{}, err
	}
	if err := Unmarshal(b[HeaderSize:], msg); err != nil {
		return Frame{}, fmt.Errorf("wire: decode %s: %w", h.Tag, err)
	}
	return Frame{SenderTag: h.SenderTag, ReceiverTag: h.ReceiverTag, Message: msg}, nil
}

func newMessage(t Tag) (Message, error) {
	switch t {
	case TagQuery:
		return &Query{}, nil
	case TagDHCommit:
		return &DHCommit{}, nil
	case TagDHKey:
		return &DHKey{}, nil
	case TagRevealSignature:
		return &RevealSignature{}, nil
	case TagSignature:
		return &Signature{}, nil
	case TagData:
		return &Data{}, nil
	default:
		return nil, fmt.Errorf("%w 0x%02x", ErrUnknownTag, uint8(t))
	}
}
