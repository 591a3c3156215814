package types

// AccountProfile identifies an offrecord account on a specific relay server.
// InstanceTag is reused across runs so peers can keep addressing this client.
type AccountProfile struct {
	ServerURL   string      `json:"server_url"`
	Username    Username    `json:"username"`
	InstanceTag InstanceTag `json:"instance_tag"`
}
