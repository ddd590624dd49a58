package detector

import (
	"context"
	"net"
	"strconv"
	"time"
)

// PortDetector reports Running when a TCP connection to Host:Port succeeds.
type PortDetector struct {
	Host    string
	Port    int
	Timeout time.Duration
}

func (d PortDetector) Address() string {
	host := d.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, strconv.Itoa(d.Port))
}

func (d PortDetector) Probe(ctx context.Context) (Liveness, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", d.Address())
	if err == nil {
		_ = conn.Close()
		return Running, nil
	}
	if isRefused(err) {
		return Stopped, nil
	}
	// Timeouts and other dial errors leave the answer open.
	return Unknown, err
}

func (d PortDetector) Describe() string { return "tcp:" + d.Address() }
