/*
Package gclib talks to Galil controllers through the command-and-response
interface of Galil's gclib.

Two drivers implement the same Driver interface:
 1. Library, a Go-native driver covering GOpen/GClose/GCommand/GVersion/GInfo
    over TCP or serial
 2. the cgo binding to libgclib, compiled in with the "gclib" build tag
*/
package gclib

import (
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// GCon is the handle of one open connection. A valid handle is nonzero.
type GCon uintptr

// Driver is the command-and-response surface of gclib.
type Driver interface {
	// GOpen connects to the controller selected by address.
	GOpen(address string) (GCon, error)

	// GClose releases the connection. Every successful GOpen needs exactly one
	// GClose on every code path.
	GClose(g GCon) error

	// GCommand sends command (a carriage return is appended) and fills buffer
	// with the response. It returns the number of bytes written, not counting
	// the NUL terminator. If the response does not fit it returns
	// G_BAD_LOST_DATA and the buffer is not terminated.
	GCommand(g GCon, command string, buffer []byte) (int, error)

	// GVersion writes the library version into buffer, truncating to fit.
	GVersion(buffer []byte) error

	// GInfo writes a description of the connection into buffer, truncating
	// to fit.
	GInfo(g GCon, buffer []byte) error
}

const LIBRARY_VERSION = "1.0.0 go"

// Library is the Go-native Driver.
type Library struct {
	mu     sync.Mutex
	conns  map[GCon]*conn
	next   GCon
	dialer Dialer
	logger *zap.Logger
}

var _ Driver = (*Library)(nil)

func NewLibrary(logger *zap.Logger) *Library {
	return &Library{
		conns:  make(map[GCon]*conn),
		next:   1,
		dialer: dial,
		logger: logger,
	}
}

func (l *Library) GOpen(address string) (GCon, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		l.logger.Warn("Rejected controller address", zap.String("address", address))
		return 0, err
	}

	t, err := l.dialer(addr)
	if err != nil {
		l.logger.Error("Error opening controller connection", zap.Error(err), zap.String("address", address))
		return 0, G_OPEN_ERROR
	}

	c := newConn(addr, t)

	// an empty command answers with a bare colon once the controller is listening
	if _, err := c.transact(""); err != nil {
		l.logger.Error("Controller did not answer handshake", zap.Error(err), zap.String("address", address))
		t.Close()
		return 0, G_OPEN_ERROR
	}

	l.mu.Lock()
	g := l.next
	l.next++
	l.conns[g] = c
	l.mu.Unlock()

	l.logger.Info("Opened controller connection", zap.String("transport", t.String()), zap.Uint64("handle", uint64(g)))
	return g, nil
}

func (l *Library) lookup(g GCon) (*conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.conns[g]
	if !ok {
		return nil, G_CONNECTION_NOT_ESTABLISHED
	}
	return c, nil
}

// GClose on a zero, unknown or already closed handle does nothing.
func (l *Library) GClose(g GCon) error {
	l.mu.Lock()
	c, ok := l.conns[g]
	delete(l.conns, g)
	l.mu.Unlock()

	if !ok {
		return nil
	}

	if err := c.close(); err != nil {
		l.logger.Warn("Error while closing controller connection", zap.Error(err), zap.Uint64("handle", uint64(g)))
		return G_GCLIB_ERROR
	}

	l.logger.Info("Closed controller connection", zap.Uint64("handle", uint64(g)))
	return nil
}

func (l *Library) GCommand(g GCon, command string, buffer []byte) (int, error) {
	c, err := l.lookup(g)
	if err != nil {
		return 0, err
	}

	if isIllegalCommand(command) {
		return 0, G_COMMAND_CALLED_WITH_ILLEGAL_COMMAND
	}

	resp, err := c.transact(command)
	if err != nil && Code(err) != G_BAD_RESPONSE_QUESTION_MARK {
		l.logger.Warn("Command failed", zap.Error(err), zap.String("command", command))
		return 0, err
	}

	n, fitErr := fill(buffer, resp)
	if err != nil {
		return n, err
	}
	return n, fitErr
}

func (l *Library) GVersion(buffer []byte) error {
	return fillTruncated(buffer, LIBRARY_VERSION)
}

func (l *Library) GInfo(g GCon, buffer []byte) error {
	c, err := l.lookup(g)
	if err != nil {
		return err
	}

	info, err := c.info()
	if err != nil {
		return err
	}
	return fillTruncated(buffer, info)
}

// Shutdown closes every connection d still has open, if d keeps track of
// them.
func Shutdown(d Driver) error {
	if c, ok := d.(interface{ CloseAll() error }); ok {
		return c.CloseAll()
	}
	return nil
}

// CloseAll releases every connection still open, e.g. on shutdown.
func (l *Library) CloseAll() error {
	l.mu.Lock()
	handles := make([]GCon, 0, len(l.conns))
	for g := range l.conns {
		handles = append(handles, g)
	}
	l.mu.Unlock()

	var err error
	for _, g := range handles {
		err = multierr.Append(err, l.GClose(g))
	}
	return err
}

// fill copies a command response into buffer with a NUL terminator.
func fill(buffer []byte, data []byte) (int, error) {
	if len(data)+1 > len(buffer) {
		n := copy(buffer, data)
		return n, G_BAD_LOST_DATA
	}

	n := copy(buffer, data)
	buffer[n] = 0
	return n, nil
}

// fillTruncated always terminates, cutting text short if needed.
func fillTruncated(buffer []byte, text string) error {
	if len(buffer) == 0 {
		return G_GCLIB_ERROR
	}

	n := copy(buffer[:len(buffer)-1], text)
	buffer[n] = 0
	return nil
}

// BufferString returns the NUL terminated prefix of a filled buffer.
func BufferString(buffer []byte) string {
	for i, b := range buffer {
		if b == 0 {
			return string(buffer[:i])
		}
	}
	return string(buffer)
}
