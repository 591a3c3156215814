package types

// TrustRecord remembers a peer fingerprint that passed a secret comparison.
type TrustRecord struct {
	Peer        Username    `json:"peer"`
	Fingerprint Fingerprint `json:"fingerprint"`
	VerifiedUTC int64       `json:"verified_utc"`
}
