package wire

import "fmt"

// TLVType identifies a TLV record inside a decrypted payload.
type TLVType uint16

const (
	TLVPadding      TLVType = 0
	TLVDisconnected TLVType = 1
	TLVSMP1         TLVType = 2
	TLVSMP2         TLVType = 3
	TLVSMP3         TLVType = 4
	TLVSMP4         TLVType = 5
	TLVSMPAbort     TLVType = 6
	TLVSMP1Q        TLVType = 7
)

// TLV is a typed record riding alongside user text.
type TLV struct {
	Type  TLVType `cbor:"1,keyasint"`
	Value []byte  `cbor:"2,keyasint,omitempty"`
}

// Payload is the plaintext of a Data message.
type Payload struct {
	Text []byte `cbor:"1,keyasint,omitempty"`
	TLVs []TLV  `cbor:"2,keyasint,omitempty"`
}

// EncodePayload serialises p.
func EncodePayload(p Payload) ([]byte, error) {
	b, err := Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("wire: encode payload: %w", err)
	}
	return b, nil
}

// DecodePayload parses a decrypted payload.
func DecodePayload(b []byte) (Payload, error) {
	var p Payload
	if err := Unmarshal(b, &p); err != nil {
		return Payload{}, fmt.Errorf("wire: decode payload: %w", err)
	}
	return p, nil
}
