package types

// Envelope is what you post/get from the relay. Frame is an opaque encoded
// protocol message; the relay never looks inside.
type Envelope struct {
	From      Username `json:"from"`
	To        Username `json:"to"`
	Frame     []byte   `json:"frame"`
	Timestamp int64    `json:"timestamp"`
}
