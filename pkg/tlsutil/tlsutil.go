// Package tlsutil provides TLS configuration utilities for secure connections.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/c360/i3xbridge/errors"
)

// ServerConfig holds file-based TLS material for the HTTP listener.
type ServerConfig struct {
	Enabled    bool   `json:"enabled"     yaml:"enabled"`
	CertFile   string `json:"cert_file"   yaml:"cert_file"`
	KeyFile    string `json:"key_file"    yaml:"key_file"`
	MinVersion string `json:"min_version" yaml:"min_version"`
}

// ClientConfig holds TLS material for outbound connections (the MQTT
// broker). CAFiles are additional trusted CAs on top of the system pool.
type ClientConfig struct {
	Enabled            bool     `json:"enabled"              yaml:"enabled"`
	CAFiles            []string `json:"ca_files"             yaml:"ca_files"`
	CertFile           string   `json:"cert_file"            yaml:"cert_file"`
	KeyFile            string   `json:"key_file"             yaml:"key_file"`
	InsecureSkipVerify bool     `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	MinVersion         string   `json:"min_version"          yaml:"min_version"`
}

// LoadServerTLSConfig creates a tls.Config for the HTTP server. Returns
// nil when TLS is disabled.
func LoadServerTLSConfig(cfg ServerConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, errors.WrapFatal(err, "tlsutil", "LoadServerTLSConfig", "load certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   parseTLSVersion(cfg.MinVersion),
	}, nil
}

// LoadClientTLSConfig creates a tls.Config for broker connections.
// Always starts from the system CA bundle; CAFiles add trusted CAs.
// Returns nil when TLS is disabled.
func LoadClientTLSConfig(cfg ClientConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		MinVersion: parseTLSVersion(cfg.MinVersion),
	}

	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		rootCAs = x509.NewCertPool()
	}

	for _, caFile := range cfg.CAFiles {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientTLSConfig",
				fmt.Sprintf("read CA file %s", caFile))
		}
		if !rootCAs.AppendCertsFromPEM(caPEM) {
			return nil, errors.WrapFatal(
				fmt.Errorf("invalid PEM data"),
				"tlsutil", "LoadClientTLSConfig",
				fmt.Sprintf("parse CA certificate from %s", caFile))
		}
	}
	tlsConfig.RootCAs = rootCAs

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		clientCert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientTLSConfig", "load client certificate")
		}
		tlsConfig.Certificates = []tls.Certificate{clientCert}
	}

	// Intentional via config - operators know the security implications
	if cfg.InsecureSkipVerify {
		tlsConfig.InsecureSkipVerify = true
	}

	return tlsConfig, nil
}

// parseTLSVersion converts version string to crypto/tls constant
// Returns tls.VersionTLS12 if empty or invalid
func parseTLSVersion(version string) uint16 {
	switch version {
	case "1.3":
		return tls.VersionTLS13
	case "1.2":
		return tls.VersionTLS12
	default:
		return tls.VersionTLS12
	}
}
