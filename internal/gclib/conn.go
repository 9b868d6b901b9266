package gclib

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

const COMMAND_TERMINATOR = '\r'
const RESPONSE_OK = ':'
const RESPONSE_ERROR = '?'

// ^R^V asks the controller for its firmware revision
const REVISION_COMMAND = "\x12\x16"
const SERIAL_NUMBER_COMMAND = "MG _BN"

// upper bound on a single response, anything longer is treated as a broken link
const MAX_RESPONSE_SIZE = 64 * 1024

// how long a leading colon or question mark waits to see whether a line follows
const LEADING_TERMINATOR_WAIT = 5 * time.Millisecond

// lower bound on how long to wait for the rest of a reply that timed out
const MIN_RESYNC_WAIT = 500 * time.Millisecond

// program transfers need the dedicated gclib calls, never GCommand
var illegalCommands = []string{"DL", "ED", "QD", "QU", "UL"}

func isIllegalCommand(command string) bool {
	for _, part := range strings.Split(command, ";") {
		part = strings.ToUpper(strings.TrimSpace(part))
		for _, prefix := range illegalCommands {
			if strings.HasPrefix(part, prefix) {
				return true
			}
		}
	}
	return false
}

type conn struct {
	mu      sync.Mutex
	addr    Address
	t       transport
	reader  *bufio.Reader
	timeout time.Duration

	// what arrived of a reply whose command timed out, nil when in step
	stale []byte
}

func newConn(addr Address, t transport) *conn {
	return &conn{
		addr:    addr,
		t:       t,
		reader:  bufio.NewReader(t),
		timeout: addr.Timeout,
	}
}

func (c *conn) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t.Close()
}

// terminator reports whether the last byte of resp ends the response. A
// colon or question mark only counts on its own or straight after a line.
func terminator(resp []byte) bool {
	last := resp[len(resp)-1]
	if last != RESPONSE_OK && last != RESPONSE_ERROR {
		return false
	}
	return len(resp) == 1 || bytes.HasSuffix(resp[:len(resp)-1], []byte("\r\n"))
}

// transact performs one command-and-response exchange and returns the
// response without its terminator. A "?" answer returns the data received
// before it together with G_BAD_RESPONSE_QUESTION_MARK.
func (c *conn) transact(command string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stale != nil {
		c.resync()
	}

	if _, err := c.t.Write([]byte(command + string(COMMAND_TERMINATOR))); err != nil {
		return nil, G_WRITE_ERROR
	}

	resp, err := c.read(nil, time.Now().Add(c.timeout))
	if err != nil {
		if errors.Is(err, G_TIMEOUT) {
			c.stale = append([]byte{}, resp...)
		}
		return nil, err
	}

	data := resp[:len(resp)-1]
	if resp[len(resp)-1] == RESPONSE_ERROR {
		return data, G_BAD_RESPONSE_QUESTION_MARK
	}
	return data, nil
}

// read appends to resp until a terminator arrives or deadline passes. On
// error the bytes read so far are returned too.
func (c *conn) read(resp []byte, deadline time.Time) ([]byte, error) {
	if err := c.t.SetReadDeadline(deadline); err != nil {
		return resp, G_READ_ERROR
	}

	for {
		b, err := c.reader.ReadByte()
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return resp, G_TIMEOUT
			}
			return resp, G_READ_ERROR
		}

		resp = append(resp, b)
		if terminator(resp) && !(len(resp) == 1 && c.lineFollows(deadline)) {
			return resp, nil
		}
		if len(resp) > MAX_RESPONSE_SIZE {
			return resp, G_READ_ERROR
		}
	}
}

// lineFollows reports whether a leading colon or question mark is the first
// line of output (MG ":") rather than a bare acknowledgement.
func (c *conn) lineFollows(deadline time.Time) bool {
	if c.reader.Buffered() == 0 {
		wait := time.Now().Add(LEADING_TERMINATOR_WAIT)
		if wait.After(deadline) {
			wait = deadline
		}
		if err := c.t.SetReadDeadline(wait); err != nil {
			return false
		}
		defer c.t.SetReadDeadline(deadline)
	}

	next, err := c.reader.Peek(1)
	return err == nil && next[0] == '\r'
}

// resync throws away the late reply to a command that timed out so the next
// command does not take it as its own answer. A reply that never comes is
// given up on after one wait.
func (c *conn) resync() {
	wait := max(c.timeout, MIN_RESYNC_WAIT)
	c.read(c.stale, time.Now().Add(wait))
	c.stale = nil

	// nothing already received belongs to the next command
	c.reader.Discard(c.reader.Buffered())
}

// info builds the "address, revision, serial" connection string
func (c *conn) info() (string, error) {
	revision, err := c.transact(REVISION_COMMAND)
	if err != nil {
		return "", err
	}

	serialNumber, err := c.transact(SERIAL_NUMBER_COMMAND)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s, %s, %s",
		c.addr.Target(),
		strings.TrimSpace(string(revision)),
		strings.TrimSpace(string(serialNumber)),
	), nil
}
