package security

import (
	"context"
	"crypto/tls"
	"math"
	"net"
	"time"
)

// Certificate states reported in CertStatus.Status.
const (
	StatusValid       = "valid"
	StatusExpiring    = "expiring"
	StatusExpired     = "expired"
	StatusUnreachable = "unreachable"
)

const (
	dialTimeout    = 10 * time.Second
	expiringWithin = 30 // days
)

// CertStatus describes the leaf certificate of a TLS endpoint.
type CertStatus struct {
	Endpoint string
	Status   string
	Issuer   string
	NotAfter string // RFC 3339, UTC
	DaysLeft int
}

// Check performs a TLS handshake with endpoint (host:port) using cfg and
// returns the status of the leaf certificate. Verification errors from the
// handshake are reported as unreachable.
func Check(ctx context.Context, endpoint string, cfg *tls.Config) CertStatus {
	return check(ctx, endpoint, cfg, time.Now())
}

func check(ctx context.Context, endpoint string, cfg *tls.Config, now time.Time) CertStatus {
	cs := CertStatus{Endpoint: endpoint}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if cfg == nil {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	dialer := &tls.Dialer{NetDialer: &net.Dialer{}, Config: cfg}

	netConn, err := dialer.DialContext(dialCtx, "tcp", endpoint)
	if err != nil {
		cs.Status = StatusUnreachable
		return cs
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peerCerts := conn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		cs.Status = StatusUnreachable
		return cs
	}

	leaf := peerCerts[0]
	daysLeft := leaf.NotAfter.Sub(now).Hours() / 24

	cs.NotAfter = leaf.NotAfter.UTC().Format(time.RFC3339)
	cs.Issuer = leaf.Issuer.CommonName
	cs.DaysLeft = int(math.Floor(daysLeft))
	cs.Status = classify(daysLeft)
	return cs
}

func classify(daysLeft float64) string {
	switch {
	case daysLeft <= 0:
		return StatusExpired
	case daysLeft <= expiringWithin:
		return StatusExpiring
	default:
		return StatusValid
	}
}
