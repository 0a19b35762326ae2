package entity

// Directory represents a response from the directory service.
type Directory struct {
	Relays map[string]RelayInfo `json:"relays"`
}

// RelayInfo contains metadata for a relay node published by the directory.
type RelayInfo struct {
	Endpoint   string   `json:"endpoint"`
	PubKey     string   `json:"pubkey"`
	X25519Pub  string   `json:"x25519_pubkey,omitempty"`
	ExitPolicy string   `json:"exit_policy,omitempty"`
	Family     []string `json:"family,omitempty"`
}
