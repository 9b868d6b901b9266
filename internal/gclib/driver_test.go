package gclib

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeController answers commands on the far end of a pipe. respond returns
// the raw bytes to send back, terminator included.
func fakeController(t *testing.T, respond func(cmd string) string) Dialer {
	return func(addr Address) (transport, error) {
		client, server := net.Pipe()

		go func() {
			defer server.Close()
			reader := bufio.NewReader(server)
			for {
				line, err := reader.ReadString(COMMAND_TERMINATOR)
				if err != nil {
					return
				}
				reply := respond(strings.TrimSuffix(line, string(COMMAND_TERMINATOR)))
				if reply == "" {
					continue
				}
				if _, err := server.Write([]byte(reply)); err != nil {
					return
				}
			}
		}()

		return &tcpTransport{Conn: client, address: "pipe"}, nil
	}
}

// tcpController serves a fake controller on a loopback port and returns its
// address. respond returns the reply and how long to sit on it.
func tcpController(t *testing.T, respond func(cmd string) (string, time.Duration)) string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				reader := bufio.NewReader(conn)
				for {
					line, err := reader.ReadString(COMMAND_TERMINATOR)
					if err != nil {
						return
					}
					reply, delay := respond(strings.TrimSuffix(line, string(COMMAND_TERMINATOR)))
					time.Sleep(delay)
					if _, err := conn.Write([]byte(reply)); err != nil {
						return
					}
				}
			}()
		}
	}()

	return ln.Addr().String()
}

func echoController(cmd string) string {
	switch cmd {
	case "":
		return ":"
	case REVISION_COMMAND:
		return "RIO47142 Rev 1.0a\r\n:"
	case SERIAL_NUMBER_COMMAND:
		return " 12345\r\n:"
	case "MG 1":
		return " 1.0000\r\n:"
	case `MG ":"`:
		return ":\r\n:"
	case `MG "?"`:
		return "?\r\n:"
	case "BAD":
		return "?"
	case "SILENT":
		return ""
	}
	return ":"
}

func newTestLibrary(t *testing.T, respond func(string) string) *Library {
	lib := NewLibrary(zap.NewNop())
	lib.dialer = fakeController(t, respond)
	return lib
}

func openTest(t *testing.T, lib *Library, address string) GCon {
	g, err := lib.GOpen(address)
	require.NoError(t, err)
	require.NotZero(t, g)
	t.Cleanup(func() { lib.GClose(g) })
	return g
}

func TestOpenClose(t *testing.T) {
	lib := newTestLibrary(t, echoController)

	g, err := lib.GOpen("127.0.0.1 -d")
	require.NoError(t, err)
	assert.NotZero(t, g)

	assert.NoError(t, lib.GClose(g))

	// closing again, or closing nothing, is a no-op
	assert.NoError(t, lib.GClose(g))
	assert.NoError(t, lib.GClose(0))

	_, err = lib.GCommand(g, "MG 1", make([]byte, 32))
	assert.Equal(t, G_CONNECTION_NOT_ESTABLISHED, Code(err))
}

func TestOpenBadAddress(t *testing.T) {
	lib := newTestLibrary(t, echoController)

	g, err := lib.GOpen("")
	assert.Zero(t, g)
	assert.True(t, errors.Is(err, G_BAD_ADDRESS))
}

func TestOpenDialFailure(t *testing.T) {
	lib := NewLibrary(zap.NewNop())
	lib.dialer = func(addr Address) (transport, error) {
		return nil, errors.New("connection refused")
	}

	g, err := lib.GOpen("10.0.0.1 -d")
	assert.Zero(t, g)
	assert.Equal(t, G_OPEN_ERROR, Code(err))
}

func TestOpenHandshakeFailure(t *testing.T) {
	lib := newTestLibrary(t, func(cmd string) string { return "?" })

	g, err := lib.GOpen("10.0.0.1 -d")
	assert.Zero(t, g)
	assert.Equal(t, G_OPEN_ERROR, Code(err))
}

func TestHandlesAreDistinct(t *testing.T) {
	lib := newTestLibrary(t, echoController)

	first := openTest(t, lib, "127.0.0.1 -d")
	second := openTest(t, lib, "127.0.0.1 -d")
	assert.NotEqual(t, first, second)

	require.NoError(t, lib.GClose(first))
	n, err := lib.GCommand(second, "MG 1", make([]byte, 32))
	assert.NoError(t, err)
	assert.Equal(t, len(" 1.0000\r\n"), n)
}

func TestCommandExactBuffer(t *testing.T) {
	lib := newTestLibrary(t, echoController)
	g := openTest(t, lib, "127.0.0.1 -d")

	reply := " 1.0000\r\n"
	buf := make([]byte, len(reply)+1)
	n, err := lib.GCommand(g, "MG 1", buf)
	require.NoError(t, err)
	assert.Equal(t, len(reply), n)
	assert.Equal(t, reply, string(buf[:n]))
	assert.Equal(t, byte(0), buf[n])
}

func TestCommandBufferTooSmall(t *testing.T) {
	lib := newTestLibrary(t, echoController)
	g := openTest(t, lib, "127.0.0.1 -d")

	reply := " 1.0000\r\n"
	buf := make([]byte, len(reply))
	n, err := lib.GCommand(g, "MG 1", buf)
	assert.Equal(t, G_BAD_LOST_DATA, Code(err))
	assert.Equal(t, len(buf), n)
	assert.Equal(t, reply, string(buf))
}

func TestCommandQuestionMark(t *testing.T) {
	lib := newTestLibrary(t, echoController)
	g := openTest(t, lib, "127.0.0.1 -d")

	_, err := lib.GCommand(g, "BAD", make([]byte, 16))
	assert.Equal(t, G_BAD_RESPONSE_QUESTION_MARK, Code(err))

	// the connection stays usable afterwards
	n, err := lib.GCommand(g, "MG 1", make([]byte, 16))
	assert.NoError(t, err)
	assert.Positive(t, n)
}

func TestCommandTimeout(t *testing.T) {
	lib := newTestLibrary(t, echoController)
	g := openTest(t, lib, "127.0.0.1 -d -t 50")

	start := time.Now()
	_, err := lib.GCommand(g, "SILENT", make([]byte, 16))
	assert.Equal(t, G_TIMEOUT, Code(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestLateReplyIsDiscarded(t *testing.T) {
	addr := tcpController(t, func(cmd string) (string, time.Duration) {
		switch cmd {
		case "SLOW":
			return " 7.0000\r\n:", 150 * time.Millisecond
		case "LOST":
			return "", 0
		}
		return echoController(cmd), 0
	})
	lib := NewLibrary(zap.NewNop())
	g := openTest(t, lib, addr+" -d -t 50")
	buf := make([]byte, 32)

	_, err := lib.GCommand(g, "SLOW", buf)
	require.Equal(t, G_TIMEOUT, Code(err))

	for i := 0; i < 3; i++ {
		n, err := lib.GCommand(g, "MG 1", buf)
		require.NoError(t, err)
		assert.Equal(t, " 1.0000\r\n", string(buf[:n]))
	}

	// a reply that never arrives costs one wait, not the session
	_, err = lib.GCommand(g, "LOST", buf)
	require.Equal(t, G_TIMEOUT, Code(err))
	n, err := lib.GCommand(g, "MG 1", buf)
	require.NoError(t, err)
	assert.Equal(t, " 1.0000\r\n", string(buf[:n]))
}

func TestLeadingColonIsData(t *testing.T) {
	lib := newTestLibrary(t, echoController)
	g := openTest(t, lib, "127.0.0.1 -d")
	buf := make([]byte, 32)

	n, err := lib.GCommand(g, `MG ":"`, buf)
	require.NoError(t, err)
	assert.Equal(t, ":\r\n", string(buf[:n]))

	n, err = lib.GCommand(g, `MG "?"`, buf)
	require.NoError(t, err)
	assert.Equal(t, "?\r\n", string(buf[:n]))

	n, err = lib.GCommand(g, "MG 1", buf)
	require.NoError(t, err)
	assert.Equal(t, " 1.0000\r\n", string(buf[:n]))

	// a bare acknowledgement still ends the reply
	n, err = lib.GCommand(g, "SB 1", buf)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCommandIllegal(t *testing.T) {
	sent := make(chan string, 8)
	lib := newTestLibrary(t, func(cmd string) string {
		sent <- cmd
		return ":"
	})
	g := openTest(t, lib, "127.0.0.1 -d")
	<-sent // handshake

	for _, cmd := range []string{"DL", "ql;QD", "UL 1"} {
		_, err := lib.GCommand(g, strings.ToUpper(cmd), make([]byte, 16))
		assert.Equal(t, G_COMMAND_CALLED_WITH_ILLEGAL_COMMAND, Code(err), cmd)
	}
	assert.Empty(t, sent)
}

func TestVersionTruncates(t *testing.T) {
	lib := NewLibrary(zap.NewNop())

	buf := make([]byte, 64)
	require.NoError(t, lib.GVersion(buf))
	assert.Equal(t, LIBRARY_VERSION, BufferString(buf))

	small := make([]byte, 4)
	require.NoError(t, lib.GVersion(small))
	assert.Equal(t, LIBRARY_VERSION[:3], BufferString(small))
	assert.Equal(t, byte(0), small[3])

	assert.Equal(t, G_GCLIB_ERROR, Code(lib.GVersion(nil)))
}

func TestInfo(t *testing.T) {
	lib := newTestLibrary(t, echoController)
	g := openTest(t, lib, "127.0.0.1 -d")

	buf := make([]byte, 128)
	require.NoError(t, lib.GInfo(g, buf))
	assert.Equal(t, "127.0.0.1:23, RIO47142 Rev 1.0a, 12345", BufferString(buf))

	small := make([]byte, 10)
	require.NoError(t, lib.GInfo(g, small))
	assert.Equal(t, "127.0.0.1", BufferString(small))
}

func TestCloseAll(t *testing.T) {
	lib := newTestLibrary(t, echoController)
	g1, err := lib.GOpen("127.0.0.1 -d")
	require.NoError(t, err)
	g2, err := lib.GOpen("127.0.0.1 -d")
	require.NoError(t, err)

	assert.NoError(t, Shutdown(lib))

	for _, g := range []GCon{g1, g2} {
		_, err := lib.GCommand(g, "MG 1", make([]byte, 16))
		assert.Equal(t, G_CONNECTION_NOT_ESTABLISHED, Code(err))
	}
}

func TestCode(t *testing.T) {
	assert.Equal(t, G_NO_ERROR, Code(nil))
	assert.Equal(t, G_TIMEOUT, Code(G_TIMEOUT))
	assert.Equal(t, G_GCLIB_ERROR, Code(errors.New("other")))
	assert.Contains(t, G_BAD_LOST_DATA.Error(), "-1014")
}
