package gclib

import (
	"fmt"
	"os"
	"time"

	"go.bug.st/serial"
)

// smallest slice of time a serial read is allowed to block for
const SERIAL_POLL_INTERVAL = 10 * time.Millisecond

// serialTransport is the RS-232 link to a controller. go.bug.st/serial only
// offers per-read timeouts, so deadlines are emulated on top of them.
type serialTransport struct {
	serial.Port

	device   string
	deadline time.Time
}

var _ transport = (*serialTransport)(nil)

func openSerial(device string, baudrate int) (*serialTransport, error) {
	mode := &serial.Mode{
		BaudRate: baudrate,
	}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", device, err)
	}

	return &serialTransport{Port: port, device: device}, nil
}

func (s *serialTransport) SetReadDeadline(t time.Time) error {
	s.deadline = t
	return nil
}

// a zero-byte read with a nil error is how the serial package reports a
// timeout, keep polling until the deadline passes
func (s *serialTransport) Read(p []byte) (int, error) {
	for {
		wait := SERIAL_POLL_INTERVAL
		if !s.deadline.IsZero() {
			remaining := time.Until(s.deadline)
			if remaining <= 0 {
				return 0, os.ErrDeadlineExceeded
			}
			wait = min(wait, remaining)
		}

		if err := s.Port.SetReadTimeout(wait); err != nil {
			return 0, err
		}

		n, err := s.Port.Read(p)
		if n > 0 || err != nil {
			return n, err
		}
	}
}

func (s *serialTransport) String() string {
	return "serial://" + s.device
}

// ListPorts returns the serial devices a controller could be attached to.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
