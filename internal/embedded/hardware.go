package embedded

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"UCLA-Rocket-Project/GALIL/internal/gclib"

	"go.uber.org/zap"
)

const READBACK_BUF_SIZE = 64

// Hardware reads outputs back over its own session to the controller so it
// never interleaves with the caller's connection.
type Hardware struct {
	passthrough

	address string
	logger  *zap.Logger

	mu       sync.Mutex
	readback gclib.GCon
	buf      [READBACK_BUF_SIZE]byte
}

var _ Functions = (*Hardware)(nil)

func NewHardware(driver gclib.Driver, address string, logger *zap.Logger) *Hardware {
	return &Hardware{
		passthrough: passthrough{driver: driver},
		address:     address,
		logger:      logger,
	}
}

// query runs one readback command and parses the numeric answer
func (h *Hardware) query(command string) (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.readback == 0 {
		g, err := h.driver.GOpen(h.address)
		if err != nil {
			h.logger.Error("Error opening readback session", zap.Error(err), zap.String("address", h.address))
			return 0, fmt.Errorf("readback session: %w", err)
		}
		h.readback = g
	}

	n, err := h.driver.GCommand(h.readback, command, h.buf[:])
	if err != nil {
		h.logger.Warn("Readback command failed", zap.Error(err), zap.String("command", command))
		return 0, fmt.Errorf("readback %q: %w", command, err)
	}

	text := strings.TrimSpace(string(h.buf[:n]))
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("readback %q: unexpected response %q", command, text)
	}
	return v, nil
}

func (h *Hardware) GetDigitalOutput(bit int) (bool, error) {
	if err := checkBit(bit); err != nil {
		return false, err
	}

	v, err := h.query(fmt.Sprintf("MG @OUT[%d]", bit))
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (h *Hardware) GetAnalogOutput(channel int) (float64, error) {
	if err := checkChannel(channel); err != nil {
		return 0, err
	}

	return h.query(fmt.Sprintf("MG @AO[%d]", channel))
}

// Close releases the readback session if one was opened.
func (h *Hardware) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.readback == 0 {
		return nil
	}
	err := h.driver.GClose(h.readback)
	h.readback = 0
	return err
}
