/*
Package embedded wraps the gclib driver calls the rest of the bench uses.

Whenever the harness sends to or receives from a controller it goes through
Functions. The G* calls are forwarded to the driver untouched, so commands and
status codes are exactly the ones documented by Galil. The two readback calls
let tests see what the outputs are actually doing.

Hardware and simulator variants only differ in how they read outputs back,
and the variant is picked once in New.
*/
package embedded

import (
	"errors"
	"io"

	"UCLA-Rocket-Project/GALIL/internal/gclib"
	"UCLA-Rocket-Project/GALIL/internal/globals"
	"UCLA-Rocket-Project/GALIL/internal/simulator"

	"go.uber.org/zap"
)

var ErrOutOfRange = errors.New("embedded: bit or channel out of range")

type Functions interface {
	io.Closer

	// GOpen opens a connection, e.g. "192.168.0.120 -d". A valid handle is
	// nonzero.
	GOpen(address string) (gclib.GCon, error)

	// GClose must be called once for every successful GOpen, on every code
	// path. An invalid or already closed handle is ignored.
	GClose(g gclib.GCon) error

	// GCommand performs a command-and-response transaction. The response is
	// NUL terminated unless the error is G_BAD_LOST_DATA.
	GCommand(g gclib.GCon, command string, buffer []byte) (int, error)

	// GVersion writes the library version, truncated to fit.
	GVersion(buffer []byte) error

	// GInfo writes a connection description, truncated to fit.
	GInfo(g gclib.GCon, buffer []byte) error

	// GetDigitalOutput reads back the state of output bit 0-15.
	GetDigitalOutput(bit int) (bool, error)

	// GetAnalogOutput reads back output channel 0-7 in volts.
	GetAnalogOutput(channel int) (float64, error)
}

type Options struct {
	UseSimulator bool

	// Address is where hardware readback sessions connect to.
	Address string

	// Inspector reads the simulator registers. Required with UseSimulator.
	Inspector simulator.Inspector
}

// New picks the hardware or simulator variant.
func New(driver gclib.Driver, opts Options, logger *zap.Logger) (Functions, error) {
	if opts.UseSimulator {
		if opts.Inspector == nil {
			return nil, errors.New("embedded: simulator mode needs an inspector")
		}
		return NewSimulated(driver, opts.Inspector, logger), nil
	}
	return NewHardware(driver, opts.Address, logger), nil
}

// passthrough forwards the driver calls both variants share
type passthrough struct {
	driver gclib.Driver
}

func (p passthrough) GOpen(address string) (gclib.GCon, error) {
	return p.driver.GOpen(address)
}

func (p passthrough) GClose(g gclib.GCon) error {
	return p.driver.GClose(g)
}

func (p passthrough) GCommand(g gclib.GCon, command string, buffer []byte) (int, error) {
	return p.driver.GCommand(g, command, buffer)
}

func (p passthrough) GVersion(buffer []byte) error {
	return p.driver.GVersion(buffer)
}

func (p passthrough) GInfo(g gclib.GCon, buffer []byte) error {
	return p.driver.GInfo(g, buffer)
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
