package wire

import "fmt"

// SMPMessage is the closed set of SMP sub-messages carried in TLVs.
type SMPMessage interface {
	TLVType() TLVType
	isSMP()
}

// SMP1 starts a comparison. Question is optional and not part of the secret.
type SMP1 struct {
	Question string `cbor:"1,keyasint,omitempty"`
	G2a      []byte `cbor:"2,keyasint"`
	C2       []byte `cbor:"3,keyasint"`
	D2       []byte `cbor:"4,keyasint"`
	G3a      []byte `cbor:"5,keyasint"`
	C3       []byte `cbor:"6,keyasint"`
	D3       []byte `cbor:"7,keyasint"`
}

// SMP2 is the responder's reply.
type SMP2 struct {
	G2b []byte `cbor:"1,keyasint"`
	C2  []byte `cbor:"2,keyasint"`
	D2  []byte `cbor:"3,keyasint"`
	G3b []byte `cbor:"4,keyasint"`
	C3  []byte `cbor:"5,keyasint"`
	D3  []byte `cbor:"6,keyasint"`
	Pb  []byte `cbor:"7,keyasint"`
	Qb  []byte `cbor:"8,keyasint"`
	Cp  []byte `cbor:"9,keyasint"`
	D5  []byte `cbor:"10,keyasint"`
	D6  []byte `cbor:"11,keyasint"`
}

// SMP3 is the initiator's second message.
type SMP3 struct {
	Pa []byte `cbor:"1,keyasint"`
	Qa []byte `cbor:"2,keyasint"`
	Cp []byte `cbor:"3,keyasint"`
	D5 []byte `cbor:"4,keyasint"`
	D6 []byte `cbor:"5,keyasint"`
	Ra []byte `cbor:"6,keyasint"`
	Cr []byte `cbor:"7,keyasint"`
	D7 []byte `cbor:"8,keyasint"`
}

// SMP4 is the responder's last message.
type SMP4 struct {
	Rb []byte `cbor:"1,keyasint"`
	Cr []byte `cbor:"2,keyasint"`
	D7 []byte `cbor:"3,keyasint"`
}

// SMPAbort cancels a comparison in progress.
type SMPAbort struct{}

// TLVType reports TLVSMP1Q when a question is attached.
func (m *SMP1) TLVType() TLVType {
	if m.Question != "" {
		return TLVSMP1Q
	}
	return TLVSMP1
}
func (*SMP2) TLVType() TLVType     { return TLVSMP2 }
func (*SMP3) TLVType() TLVType     { return TLVSMP3 }
func (*SMP4) TLVType() TLVType     { return TLVSMP4 }
func (*SMPAbort) TLVType() TLVType { return TLVSMPAbort }

func (*SMP1) isSMP()     {}
func (*SMP2) isSMP()     {}
func (*SMP3) isSMP()     {}
func (*SMP4) isSMP()     {}
func (*SMPAbort) isSMP() {}

// IsSMP reports whether t holds an SMP sub-message.
func IsSMP(t TLVType) bool {
	switch t {
	case TLVSMP1, TLVSMP1Q, TLVSMP2, TLVSMP3, TLVSMP4, TLVSMPAbort:
		return true
	}
	return false
}

// EncodeSMP wraps m in a TLV.
func EncodeSMP(m SMPMessage) (TLV, error) {
	if _, ok := m.(*SMPAbort); ok {
		return TLV{Type: TLVSMPAbort}, nil
	}
	b, err := Marshal(m)
	if err != nil {
		return TLV{}, fmt.Errorf("wire: encode smp: %w", err)
	}
	return TLV{Type: m.TLVType(), Value: b}, nil
}

// DecodeSMP unwraps an SMP sub-message from t.
func DecodeSMP(t TLV) (SMPMessage, error) {
	var m SMPMessage
	switch t.Type {
	case TLVSMP1, TLVSMP1Q:
		m = &SMP1{}
	case TLVSMP2:
		m = &SMP2{}
	case TLVSMP3:
		m = &SMP3{}
	case TLVSMP4:
		m = &SMP4{}
	case TLVSMPAbort:
		return &SMPAbort{}, nil
	default:
		return nil, fmt.Errorf("%w: type %d", ErrNotSMP, t.Type)
	}
	if err := Unmarshal(t.Value, m); err != nil {
		return nil, fmt.Errorf("wire: decode smp type %d: %w", t.Type, err)
	}
	if q, ok := m.(*SMP1); ok && t.Type == TLVSMP1 && q.Question != "" {
		return nil, fmt.Errorf("wire: decode smp: question in plain SMP1")
	}
	return m, nil
}
