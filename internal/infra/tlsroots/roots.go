package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

var (
	// ErrNoCertsFound is returned when a CA file holds no certificate.
	ErrNoCertsFound = errors.New("tlsroots: no certificates found in PEM data")

	// ErrIncompletePair is returned when only one of cert and key is set.
	ErrIncompletePair = errors.New("tlsroots: client cert and key must be set together")
)

// ClientFiles names the PEM files of a TLS client.
type ClientFiles struct {
	// CAFile holds extra trusted roots, added to the system pool.
	CAFile string

	// CertFile and KeyFile hold the client certificate and its key.
	CertFile string
	KeyFile  string
}

// Enabled reports whether any file is set.
func (f ClientFiles) Enabled() bool {
	return f.CAFile != "" || f.CertFile != "" || f.KeyFile != ""
}

// ClientConfig builds a client TLS config from f. It returns nil when no
// file is set.
func ClientConfig(f ClientFiles) (*tls.Config, error) {
	if !f.Enabled() {
		return nil, nil
	}
	if (f.CertFile == "") != (f.KeyFile == "") {
		return nil, ErrIncompletePair
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if f.CAFile != "" {
		pool, err := x509.SystemCertPool()
		if err != nil {
			pool = x509.NewCertPool()
		}
		data, err := os.ReadFile(f.CAFile)
		if err != nil {
			return nil, fmt.Errorf("tlsroots: read ca file %s: %w", f.CAFile, err)
		}
		if _, err := AppendPEM(pool, data); err != nil {
			return nil, fmt.Errorf("%s: %w", f.CAFile, err)
		}
		cfg.RootCAs = pool
	}

	if f.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(f.CertFile, f.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("tlsroots: load key pair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

// AppendPEM adds every CERTIFICATE block of data to pool and returns how
// many were added. Other block types are skipped.
func AppendPEM(pool *x509.CertPool, data []byte) (int, error) {
	var added int
	for len(data) > 0 {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return added, fmt.Errorf("tlsroots: parse certificate: %w", err)
		}
		pool.AddCert(cert)
		added++
	}
	if added == 0 {
		return 0, ErrNoCertsFound
	}
	return added, nil
}
