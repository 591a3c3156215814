package types

// Username represents a relay-registered identity.
type Username string

// String returns the string form of the username.
func (u Username) String() string { return string(u) }

// Fingerprint is the hex SHA-256 of a long-term public key, shown to users
// and mixed into the SMP secret.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// InstanceTag disambiguates several clients of the same identity. Valid tags
// are at least MinInstanceTag; zero means "not yet known".
type InstanceTag uint32

// MinInstanceTag is the smallest tag a client may pick.
const MinInstanceTag InstanceTag = 0x100

// Valid reports whether t is usable as a client's own tag.
func (t InstanceTag) Valid() bool { return t >= MinInstanceTag }

// MsgState is the message state of one conversation.
type MsgState int

const (
	MsgStatePlaintext MsgState = iota
	MsgStateEncrypted
	MsgStateFinished
)

func (s MsgState) String() string {
	switch s {
	case MsgStatePlaintext:
		return "PLAINTEXT"
	case MsgStateEncrypted:
		return "ENCRYPTED"
	case MsgStateFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}
