package tlsserver

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"
)

func TestIsAvailable(t *testing.T) {
	if !IsAvailable() {
		t.Fatal("expected TLS to be available in a Go build")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MinVersion != TLS12 {
		t.Fatalf("expected default MinVersion TLS12, got %v", cfg.MinVersion)
	}
	if cfg.VerifyClient {
		t.Fatal("expected default VerifyClient false")
	}
}

func TestNilHandlesAreSafe(t *testing.T) {
	var l *Listener
	if err := l.Close(); err != nil {
		t.Fatalf("nil Listener Close should be a safe no-op, got %v", err)
	}
	if _, err := l.Accept(); err == nil {
		t.Fatal("nil Listener Accept should report an error, not panic")
	}

	var c *Conn
	if err := c.Close(); err != nil {
		t.Fatalf("nil Conn Close should be a safe no-op, got %v", err)
	}
	if c.PeerCN() != "" {
		t.Fatal("nil Conn PeerCN should return empty string")
	}
	if c.CertDaysRemaining() != -1 {
		t.Fatal("nil Conn CertDaysRemaining should return -1")
	}
	if c.VersionString() != "" {
		t.Fatal("nil Conn VersionString should return empty string")
	}
}

// generateSelfSigned returns a DER-encoded self-signed certificate and its
// private key, used to exercise Accept/PeerCN/CertDaysRemaining without
// depending on external fixtures.
func generateSelfSigned(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "gigavector-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(48 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

func TestAcceptHandshakeAndPeerInfo(t *testing.T) {
	cert := generateSelfSigned(t)

	raw, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	serverTLSCfg := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	l := &Listener{inner: tls.NewListener(raw, serverTLSCfg)}

	serverErr := make(chan error, 1)
	var serverConn *Conn
	go func() {
		c, err := l.Accept()
		serverConn = c
		serverErr <- err
	}()

	clientCfg := &tls.Config{InsecureSkipVerify: true}
	clientConn, err := tls.Dial("tcp", raw.Addr().String(), clientCfg)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer clientConn.Close()

	if err := <-serverErr; err != nil {
		t.Fatalf("accept: %v", err)
	}
	defer serverConn.Close()
	defer l.Close()

	if serverConn.VersionString() == "" {
		t.Fatal("expected a non-empty negotiated TLS version string")
	}
	// No client certificate was presented, so PeerCN/CertDaysRemaining
	// report the documented empty/-1 sentinel.
	if serverConn.PeerCN() != "" {
		t.Fatalf("expected empty PeerCN with no client cert, got %q", serverConn.PeerCN())
	}
	if serverConn.CertDaysRemaining() != -1 {
		t.Fatalf("expected -1 CertDaysRemaining with no client cert, got %d", serverConn.CertDaysRemaining())
	}
}
