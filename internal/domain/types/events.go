package types

// EventKind enumerates what a conversation reports to its host.
type EventKind int

const (
	// EventAKESuccess fires once both signatures have been verified.
	EventAKESuccess EventKind = iota + 1
	// EventEncrypted fires when the message state becomes ENCRYPTED.
	EventEncrypted
	// EventFinished fires when the peer ended the encrypted session.
	EventFinished
	// EventPlaintext fires when the local side returns to PLAINTEXT.
	EventPlaintext
	// EventMessage carries decrypted user text.
	EventMessage
	// EventSMPQuestion asks the user for the shared secret. Question may be
	// empty.
	EventSMPQuestion
	// EventSMPSucceeded reports that both secrets matched.
	EventSMPSucceeded
	// EventSMPFailed reports that the secrets differed.
	EventSMPFailed
	// EventSMPAborted reports that a comparison was cancelled by either side.
	EventSMPAborted
	// EventError reports a recoverable protocol error. The conversation
	// stays usable.
	EventError
	// EventReplay reports a dropped replayed data message.
	EventReplay
)

var eventNames = map[EventKind]string{
	EventAKESuccess:   "ake-success",
	EventEncrypted:    "encrypted",
	EventFinished:     "finished",
	EventPlaintext:    "plaintext",
	EventMessage:      "message",
	EventSMPQuestion:  "question-received",
	EventSMPSucceeded: "comparison-succeeded",
	EventSMPFailed:    "comparison-failed",
	EventSMPAborted:   "aborted",
	EventError:        "error",
	EventReplay:       "replay",
}

func (k EventKind) String() string {
	if s, ok := eventNames[k]; ok {
		return s
	}
	return "unknown"
}

// Event is one status change surfaced by a conversation.
type Event struct {
	Kind     EventKind
	Text     []byte // EventMessage
	Question string // EventSMPQuestion
	Err      error  // EventError, EventReplay, EventSMPAborted (when local)
}
