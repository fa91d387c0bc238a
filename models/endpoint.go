package models

// RemoteEndpoint is the trusted integration on a foreign chain. It is written once by
// governance and never overwritten.
type RemoteEndpoint struct {
	Chain   ChainID `json:"chain"`
	Emitter Address `json:"emitter"`
	Domain  Domain  `json:"domain"`
}
