package gclib

import (
	"fmt"
	"io"
	"net"
	"time"
)

// transport is the byte link to one controller. Reads past the deadline fail
// with an error satisfying errors.Is(err, os.ErrDeadlineExceeded).
type transport interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
	String() string
}

// Dialer opens the transport for a parsed address. Tests replace it to run
// the driver against in-memory links.
type Dialer func(addr Address) (transport, error)

func dial(addr Address) (transport, error) {
	if addr.IsSerial() {
		return openSerial(addr.Device, addr.BaudRate)
	}
	return openTCP(addr.Target(), addr.Timeout)
}

// tcpTransport wraps a TCP connection to the controller's command port
type tcpTransport struct {
	net.Conn
	address string
}

var _ transport = (*tcpTransport)(nil)

func openTCP(address string, timeout time.Duration) (*tcpTransport, error) {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	return &tcpTransport{Conn: conn, address: address}, nil
}

func (t *tcpTransport) String() string {
	return "tcp://" + t.address
}
