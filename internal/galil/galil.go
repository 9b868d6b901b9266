// Package galil drives the I/O of a Galil controller by issuing Galil
// commands through the embedded functions.
package galil

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"UCLA-Rocket-Project/GALIL/internal/embedded"
	"UCLA-Rocket-Project/GALIL/internal/gclib"
	"UCLA-Rocket-Project/GALIL/internal/globals"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const RESPONSE_BUF_SIZE = 1024

var ErrOutOfRange = errors.New("galil: bank, bit, channel or axis out of range")
var ErrClosed = errors.New("galil: connection closed")

// Galil owns one open connection. It is safe for use from one goroutine at a
// time; the mutex only guards the shared response buffer against misuse.
type Galil struct {
	funcs   embedded.Functions
	address string
	logger  *zap.Logger

	mu     sync.Mutex
	g      gclib.GCon
	buf    [RESPONSE_BUF_SIZE]byte
	closed bool
}

// New opens address through funcs and owns funcs from then on.
func New(funcs embedded.Functions, address string, logger *zap.Logger) (*Galil, error) {
	g, err := funcs.GOpen(address)
	if err != nil {
		logger.Error("Error opening controller", zap.Error(err), zap.String("address", address))
		return nil, fmt.Errorf("open %s: %w", address, err)
	}

	logger.Info("Connected to controller", zap.String("address", address))
	return &Galil{
		funcs:   funcs,
		address: address,
		logger:  logger,
		g:       g,
	}, nil
}

// Close releases the connection and then funcs, which New took over. Later
// calls do nothing.
func (gl *Galil) Close() error {
	gl.mu.Lock()
	defer gl.mu.Unlock()

	if gl.closed {
		return nil
	}
	gl.closed = true
	return multierr.Append(gl.funcs.GClose(gl.g), gl.funcs.Close())
}

func (gl *Galil) Address() string {
	return gl.address
}

func (gl *Galil) Functions() embedded.Functions {
	return gl.funcs
}

// Command sends a raw command and returns the response with surrounding
// whitespace removed.
func (gl *Galil) Command(command string) (string, error) {
	gl.mu.Lock()
	defer gl.mu.Unlock()

	if gl.closed {
		return "", ErrClosed
	}

	n, err := gl.funcs.GCommand(gl.g, command, gl.buf[:])
	if err != nil {
		gl.logger.Warn("Command rejected", zap.Error(err), zap.String("command", command))
		return "", fmt.Errorf("%q: %w", command, err)
	}

	gl.logger.Debug("Command sent", zap.String("command", command), zap.ByteString("response", gl.buf[:n]))
	return strings.TrimSpace(string(gl.buf[:n])), nil
}

func (gl *Galil) number(command string) (float64, error) {
	resp, err := gl.Command(command)
	if err != nil {
		return 0, err
	}

	v, err := strconv.ParseFloat(resp, 64)
	if err != nil {
		return 0, fmt.Errorf("%q: unexpected response %q", command, resp)
	}
	return v, nil
}

func checkBank(bank int) error {
	if bank < 0 || bank >= globals.DIGITAL_BANKS {
		return ErrOutOfRange
	}
	return nil
}

func checkBit(bit int) error {
	if bit < 0 || bit >= globals.DIGITAL_BITS {
		return ErrOutOfRange
	}
	return nil
}

func checkChannel(channel int) error {
	if channel < 0 || channel >= globals.ANALOG_CHANNELS {
		return ErrOutOfRange
	}
	return nil
}

// DigitalOutput writes all 16 outputs, bit n of value driving output n.
func (gl *Galil) DigitalOutput(value uint16) error {
	_, err := gl.Command(fmt.Sprintf("OP %d,%d", value&0xFF, value>>8))
	return err
}

// DigitalByteOutput writes one bank and leaves the other untouched.
func (gl *Galil) DigitalByteOutput(bank int, value uint8) error {
	if err := checkBank(bank); err != nil {
		return err
	}

	var cmd string
	if bank == 0 {
		cmd = fmt.Sprintf("OP %d", value)
	} else {
		cmd = fmt.Sprintf("OP ,%d", value)
	}
	_, err := gl.Command(cmd)
	return err
}

func (gl *Galil) DigitalBitOutput(bit int, value bool) error {
	if err := checkBit(bit); err != nil {
		return err
	}

	v := 0
	if value {
		v = 1
	}
	_, err := gl.Command(fmt.Sprintf("OB %d,%d", bit, v))
	return err
}

// DigitalInput reads all 16 inputs.
func (gl *Galil) DigitalInput() (uint16, error) {
	low, err := gl.DigitalByteInput(0)
	if err != nil {
		return 0, err
	}
	high, err := gl.DigitalByteInput(1)
	if err != nil {
		return 0, err
	}
	return uint16(high)<<8 | uint16(low), nil
}

func (gl *Galil) DigitalByteInput(bank int) (uint8, error) {
	if err := checkBank(bank); err != nil {
		return 0, err
	}

	v, err := gl.number(fmt.Sprintf("MG _TI%d", bank))
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 0xFF {
		return 0, fmt.Errorf("input bank %d: value %v out of byte range", bank, v)
	}
	return uint8(v), nil
}

func (gl *Galil) DigitalBitInput(bit int) (bool, error) {
	if err := checkBit(bit); err != nil {
		return false, err
	}

	v, err := gl.number(fmt.Sprintf("MG @IN[%d]", bit))
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// AnalogOutput sets an output channel in volts. Voltages the controller
// cannot produce come back as a question mark error.
func (gl *Galil) AnalogOutput(channel int, volts float64) error {
	if err := checkChannel(channel); err != nil {
		return err
	}
	if math.IsNaN(volts) || math.IsInf(volts, 0) {
		return ErrOutOfRange
	}

	_, err := gl.Command(fmt.Sprintf("AO %d,%.4f", channel, volts))
	return err
}

func (gl *Galil) AnalogInput(channel int) (float64, error) {
	if err := checkChannel(channel); err != nil {
		return 0, err
	}

	return gl.number(fmt.Sprintf("MG @AN[%d]", channel))
}

func (gl *Galil) WriteEncoder(axis int, count int) error {
	if axis < 0 || axis >= globals.ENCODER_CHANNELS {
		return ErrOutOfRange
	}

	_, err := gl.Command(fmt.Sprintf("WE %d,%d", axis, count))
	return err
}

func (gl *Galil) ReadEncoder(axis int) (int, error) {
	if axis < 0 || axis >= globals.ENCODER_CHANNELS {
		return 0, ErrOutOfRange
	}

	v, err := gl.number(fmt.Sprintf("QE %d", axis))
	return int(v), err
}

// LastError asks the controller why the last command got a question mark.
func (gl *Galil) LastError() (string, error) {
	return gl.Command("TC1")
}

// String describes the connection and the driver, or the error hit while
// asking for them.
func (gl *Galil) String() string {
	gl.mu.Lock()
	defer gl.mu.Unlock()

	if gl.closed {
		return gl.address + " (closed)"
	}

	if err := gl.funcs.GInfo(gl.g, gl.buf[:]); err != nil {
		return fmt.Sprintf("%s (info unavailable: %v)", gl.address, err)
	}
	info := gclib.BufferString(gl.buf[:])

	if err := gl.funcs.GVersion(gl.buf[:]); err != nil {
		return info
	}
	return fmt.Sprintf("%s\ngclib %s", info, gclib.BufferString(gl.buf[:]))
}
