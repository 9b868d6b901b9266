/*
Package simulator stands in for a Galil RIO controller on the bench.

It keeps the controller's I/O registers, interprets the subset of the Galil
command language the harness uses, serves it on a TCP command port the same
way the hardware does, and exposes the registers for inspection over HTTP and
a websocket stream.

Bank 0 digital outputs are wired to bank 0 digital inputs, and analog output n
drives analog input n unless analog loopback is turned off.
*/
package simulator

import (
	"errors"
	"sync"

	"UCLA-Rocket-Project/GALIL/internal/globals"
)

var ErrOutOfRange = errors.New("simulator: index out of range")
var ErrDrivenInput = errors.New("simulator: input is driven by the loopback wiring")

type Config struct {
	Model          string  `yaml:"model"`
	Revision       string  `yaml:"revision"`
	SerialNumber   int     `yaml:"serial_number"`
	AnalogMin      float64 `yaml:"analog_min"`
	AnalogMax      float64 `yaml:"analog_max"`
	AnalogLoopback bool    `yaml:"analog_loopback"`
}

func DefaultConfig() Config {
	return Config{
		Model:          "RIO47142",
		Revision:       "Rev 1.0a",
		SerialNumber:   12345,
		AnalogMin:      globals.ANALOG_MIN,
		AnalogMax:      globals.ANALOG_MAX,
		AnalogLoopback: globals.ANALOG_LOOPBACK,
	}
}

// State is a snapshot of every register, comparable with ==.
type State struct {
	DigitalOutputs [globals.DIGITAL_BITS]bool       `json:"digital_outputs"`
	DigitalInputs  [globals.DIGITAL_BITS]bool       `json:"digital_inputs"`
	AnalogOutputs  [globals.ANALOG_CHANNELS]float64 `json:"analog_outputs"`
	AnalogInputs   [globals.ANALOG_CHANNELS]float64 `json:"analog_inputs"`
	Encoders       [globals.ENCODER_CHANNELS]int    `json:"encoders"`
	LastError      int                              `json:"last_error"`
}

// Inspector reads back output registers without going through the command
// port. Both the in-process Controller and the HTTP Client implement it.
type Inspector interface {
	DigitalOutput(bit int) (bool, error)
	AnalogOutput(channel int) (float64, error)
}

type Controller struct {
	mu     sync.Mutex
	config Config

	outputs        uint16
	externalInputs uint16
	analogOut      [globals.ANALOG_CHANNELS]float64
	externalAnalog [globals.ANALOG_CHANNELS]float64
	encoders       [globals.ENCODER_CHANNELS]int
	lastError      cmdError

	subscribers map[int]chan State
	nextSub     int
}

var _ Inspector = (*Controller)(nil)

func NewController(config Config) *Controller {
	return &Controller{
		config:      config,
		subscribers: make(map[int]chan State),
	}
}

func bitInRange(bit int) bool {
	return bit >= 0 && bit < globals.DIGITAL_BITS
}

func channelInRange(channel int) bool {
	return channel >= 0 && channel < globals.ANALOG_CHANNELS
}

func bankOf(bit int) int {
	return bit / globals.BITS_PER_BANK
}

// inputsLocked merges the loopback bank with the externally driven inputs
func (c *Controller) inputsLocked() uint16 {
	mask := uint16(0xFF) << (globals.LOOPBACK_BANK * globals.BITS_PER_BANK)
	return (c.outputs & mask) | (c.externalInputs &^ mask)
}

func (c *Controller) analogInLocked(channel int) float64 {
	if c.config.AnalogLoopback {
		return c.analogOut[channel]
	}
	return c.externalAnalog[channel]
}

func (c *Controller) snapshotLocked() State {
	var s State
	inputs := c.inputsLocked()
	for bit := 0; bit < globals.DIGITAL_BITS; bit++ {
		s.DigitalOutputs[bit] = c.outputs&(1<<bit) != 0
		s.DigitalInputs[bit] = inputs&(1<<bit) != 0
	}
	for ch := 0; ch < globals.ANALOG_CHANNELS; ch++ {
		s.AnalogOutputs[ch] = c.analogOut[ch]
		s.AnalogInputs[ch] = c.analogInLocked(ch)
	}
	s.Encoders = c.encoders
	s.LastError = c.lastError.code
	return s
}

func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) DigitalOutput(bit int) (bool, error) {
	if !bitInRange(bit) {
		return false, ErrOutOfRange
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outputs&(1<<bit) != 0, nil
}

func (c *Controller) AnalogOutput(channel int) (float64, error) {
	if !channelInRange(channel) {
		return 0, ErrOutOfRange
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analogOut[channel], nil
}

func (c *Controller) DigitalInput(bit int) (bool, error) {
	if !bitInRange(bit) {
		return false, ErrOutOfRange
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputsLocked()&(1<<bit) != 0, nil
}

func (c *Controller) AnalogInput(channel int) (float64, error) {
	if !channelInRange(channel) {
		return 0, ErrOutOfRange
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analogInLocked(channel), nil
}

// SetDigitalInput drives an input line that is not part of the loopback bank.
func (c *Controller) SetDigitalInput(bit int, value bool) error {
	if !bitInRange(bit) {
		return ErrOutOfRange
	}
	if bankOf(bit) == globals.LOOPBACK_BANK {
		return ErrDrivenInput
	}

	c.mutate(func() {
		if value {
			c.externalInputs |= 1 << bit
		} else {
			c.externalInputs &^= 1 << bit
		}
	})
	return nil
}

func (c *Controller) SetAnalogInput(channel int, volts float64) error {
	if !channelInRange(channel) {
		return ErrOutOfRange
	}
	if c.config.AnalogLoopback {
		return ErrDrivenInput
	}

	c.mutate(func() {
		c.externalAnalog[channel] = volts
	})
	return nil
}

// mutate applies fn under the lock and publishes the new state if it changed
func (c *Controller) mutate(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := c.snapshotLocked()
	fn()
	after := c.snapshotLocked()
	if before != after {
		c.publishLocked(after)
	}
}

// Subscribe returns a channel that always holds the latest state after a
// change. Slow readers only ever miss intermediate states.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan State, 1)
	c.subscribers[id] = ch

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subscribers[id]; ok {
			delete(c.subscribers, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (c *Controller) publishLocked(s State) {
	for _, ch := range c.subscribers {
		select {
		case ch <- s:
		default:
			// replace the stale state
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}
