// Package security provides shared TLS configuration types for ShopStream
// listeners and broker connections.
package security

// ServerTLSConfig holds TLS configuration for the gateway's HTTPS listener.
type ServerTLSConfig struct {
	Enabled    bool   `json:"enabled"`
	CertFile   string `json:"cert_file,omitempty"`
	KeyFile    string `json:"key_file,omitempty"`
	MinVersion string `json:"min_version,omitempty"` // "1.2" (default) or "1.3"
}

// ClientTLSConfig holds TLS configuration for connections to the broker.
// The system CA bundle is always trusted; CAFile adds one more trusted CA,
// which is how deployments running NATS under their own CA verify it.
// When CertFile and KeyFile are both set the connection presents that
// certificate to the broker (mutual TLS).
type ClientTLSConfig struct {
	Enabled            bool   `json:"enabled"`
	CertFile           string `json:"cert_file,omitempty"`
	KeyFile            string `json:"key_file,omitempty"`
	CAFile             string `json:"ca_file,omitempty"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify,omitempty"` // DEV/TEST ONLY
	MinVersion         string `json:"min_version,omitempty"`
}
