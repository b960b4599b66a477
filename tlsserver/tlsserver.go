// Package tlsserver implements the TLS listener's "thin wrapper over a
// platform TLS library" contract (§12 "external collaborator", §6 tls_*).
// GigaVector elects to implement it against crypto/tls rather than leave
// it as a pure interface, since the standard library's TLS stack is the
// obvious "platform TLS library" for a Go build of this engine; no pack
// example ships an alternative TLS library for this concern, so the
// standard library is used directly rather than forced through a
// third-party dependency.
package tlsserver

import (
	"crypto/tls"
	"net"
	"time"

	"github.com/gigavector/gigavector/errors"
)

// Version mirrors §6's tls_config_init version enum (TLS_1_2=0 default,
// TLS_1_3=1).
type Version int

const (
	TLS12 Version = iota
	TLS13
)

func (v Version) goVersion() uint16 {
	if v == TLS13 {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}

// Config mirrors §6's tls_config_init defaults: all paths empty,
// MinVersion=TLS_1_2, VerifyClient false. It has no cipher-list setting;
// crypto/tls's default cipher suites are always used.
type Config struct {
	CertFile     string
	KeyFile      string
	MinVersion   Version
	VerifyClient bool
}

// DefaultConfig returns §6's stated tls_config_init defaults.
func DefaultConfig() Config {
	return Config{MinVersion: TLS12}
}

// IsAvailable reports whether TLS support is compiled in. Always true for
// a Go build, since crypto/tls is part of the standard library (§6
// tls_is_available).
func IsAvailable() bool { return true }

// Listener wraps a TLS-terminating net.Listener with the Accept/Read/
// Write/Close surface named in §6.
type Listener struct {
	inner net.Listener
}

// Create builds and starts listening on addr using cfg, loading the
// configured certificate and key (§6 tls_create).
func Create(addr string, cfg Config) (*Listener, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, errors.New(errors.KindInvalidArgument, "tlsserver.Create", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   cfg.MinVersion.goVersion(),
	}
	if cfg.VerifyClient {
		tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	}

	raw, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.New(errors.KindInternal, "tlsserver.Create", err)
	}
	inner := tls.NewListener(raw, tlsCfg)
	return &Listener{inner: inner}, nil
}

// Accept blocks for the next inbound connection and completes its TLS
// handshake (§6 tls_accept).
func (l *Listener) Accept() (*Conn, error) {
	if l == nil || l.inner == nil {
		return nil, errors.New(errors.KindInvalidArgument, "tlsserver.Accept", nil)
	}
	c, err := l.inner.Accept()
	if err != nil {
		return nil, errors.New(errors.KindInternal, "tlsserver.Accept", err)
	}
	tlsConn, ok := c.(*tls.Conn)
	if !ok {
		return nil, errors.New(errors.KindInternal, "tlsserver.Accept", nil)
	}
	if err := tlsConn.Handshake(); err != nil {
		tlsConn.Close()
		return nil, errors.New(errors.KindInternal, "tlsserver.Accept", err)
	}
	return &Conn{conn: tlsConn}, nil
}

// Close releases the listening socket. Safe on a nil Listener.
func (l *Listener) Close() error {
	if l == nil || l.inner == nil {
		return nil
	}
	return l.inner.Close()
}

// Conn wraps an accepted, handshaked TLS connection (§6 tls_read/
// tls_write/tls_close_conn and the peer-info surface).
type Conn struct {
	conn *tls.Conn
}

// Read reads application data from the connection (§6 tls_read).
func (c *Conn) Read(buf []byte) (int, error) {
	if c == nil || c.conn == nil {
		return 0, errors.New(errors.KindInvalidArgument, "tlsserver.Conn.Read", nil)
	}
	return c.conn.Read(buf)
}

// Write sends application data over the connection (§6 tls_write).
func (c *Conn) Write(buf []byte) (int, error) {
	if c == nil || c.conn == nil {
		return 0, errors.New(errors.KindInvalidArgument, "tlsserver.Conn.Write", nil)
	}
	return c.conn.Write(buf)
}

// Close closes the connection (§6 tls_close_conn). Safe on a nil Conn.
func (c *Conn) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// VersionString reports the negotiated TLS version as a human string
// (§6 tls_version_string).
func (c *Conn) VersionString() string {
	if c == nil || c.conn == nil {
		return ""
	}
	switch c.conn.ConnectionState().Version {
	case tls.VersionTLS13:
		return "TLSv1.3"
	case tls.VersionTLS12:
		return "TLSv1.2"
	default:
		return "unknown"
	}
}

// PeerCN returns the common name of the peer's leaf certificate, or "" if
// there is no verified peer certificate (§6 tls_get_peer_cn, supplemented
// feature: peer info).
func (c *Conn) PeerCN() string {
	if c == nil || c.conn == nil {
		return ""
	}
	chains := c.conn.ConnectionState().PeerCertificates
	if len(chains) == 0 {
		return ""
	}
	return chains[0].Subject.CommonName
}

// CertDaysRemaining returns the number of whole days remaining before the
// peer's leaf certificate expires, or -1 if there is no peer certificate
// (§6 tls_cert_days_remaining, supplemented feature: peer info).
func (c *Conn) CertDaysRemaining() int {
	if c == nil || c.conn == nil {
		return -1
	}
	chains := c.conn.ConnectionState().PeerCertificates
	if len(chains) == 0 {
		return -1
	}
	remaining := time.Until(chains[0].NotAfter)
	return int(remaining.Hours() / 24)
}
