package tlsroots

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestClientConfig_Disabled(t *testing.T) {
	cfg, err := ClientConfig(ClientFiles{})
	if err != nil || cfg != nil {
		t.Errorf("ClientConfig() = %v, %v; want nil, nil", cfg, err)
	}
}

func TestClientConfig_CAFile(t *testing.T) {
	dir := t.TempDir()
	caFile := filepath.Join(dir, "ca.pem")
	certPEM, _ := generateCert(t)
	if err := os.WriteFile(caFile, certPEM, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := ClientConfig(ClientFiles{CAFile: caFile})
	if err != nil {
		t.Fatalf("ClientConfig() error = %v", err)
	}
	if cfg.RootCAs == nil {
		t.Error("RootCAs should be set")
	}
	if len(cfg.Certificates) != 0 {
		t.Error("no client certificate expected")
	}
}

func TestClientConfig_KeyPair(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "client.pem")
	keyFile := filepath.Join(dir, "client.key")
	certPEM, keyPEM := generateCert(t)
	if err := os.WriteFile(certFile, certPEM, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := ClientConfig(ClientFiles{CertFile: certFile, KeyFile: keyFile})
	if err != nil {
		t.Fatalf("ClientConfig() error = %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Errorf("Certificates = %d, want 1", len(cfg.Certificates))
	}
	if cfg.RootCAs != nil {
		t.Error("RootCAs should default to the system roots")
	}
}

func TestClientConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	notCert := filepath.Join(dir, "key-only.pem")
	if err := os.WriteFile(notCert, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte("x")}), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		files   ClientFiles
		wantErr error
	}{
		{"cert without key", ClientFiles{CertFile: "a.pem"}, ErrIncompletePair},
		{"key without cert", ClientFiles{KeyFile: "a.key"}, ErrIncompletePair},
		{"missing ca file", ClientFiles{CAFile: filepath.Join(dir, "missing.pem")}, nil},
		{"ca file without certificates", ClientFiles{CAFile: notCert}, ErrNoCertsFound},
		{"missing key pair", ClientFiles{CertFile: "/nonexistent/cert", KeyFile: "/nonexistent/key"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ClientConfig(tt.files)
			if err == nil {
				t.Fatal("ClientConfig() expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("ClientConfig() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAppendPEM(t *testing.T) {
	a, _ := generateCert(t)
	b, _ := generateCert(t)
	data := append(append([]byte{}, a...), b...)
	data = append(data, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: []byte("skip")})...)

	n, err := AppendPEM(x509.NewCertPool(), data)
	if err != nil || n != 2 {
		t.Errorf("AppendPEM() = %d, %v; want 2, nil", n, err)
	}

	bad := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte("garbage")})
	if _, err := AppendPEM(x509.NewCertPool(), bad); err == nil {
		t.Error("AppendPEM() should reject an invalid certificate")
	}
	if _, err := AppendPEM(x509.NewCertPool(), nil); !errors.Is(err, ErrNoCertsFound) {
		t.Errorf("AppendPEM(nil) error = %v, want %v", err, ErrNoCertsFound)
	}
}

// generateCert returns a self-signed certificate and its key, PEM-encoded.
func generateCert(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			Organization: []string{"Test Org"},
			CommonName:   "nats.local",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate() error = %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey() error = %v", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM
}
