package simulator

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"UCLA-Rocket-Project/GALIL/internal/globals"
)

// ^R^V, answered with the firmware revision
const REVISION_QUERY = "\x12\x16"

// longest WT the simulator honours
const MAX_WAIT = 10 * time.Second

// cmdError mirrors the controller's TC error codes
type cmdError struct {
	code int
	text string
}

var (
	errNone         = cmdError{}
	errUnrecognized = cmdError{1, "Unrecognized command"}
	errOperand      = cmdError{4, "Operand error"}
	errRange        = cmdError{6, "Number out of range"}
)

type handler func(c *Controller, args []string) (string, *cmdError)

var handlers = map[string]handler{
	"SB": setBit,
	"CB": clearBit,
	"OB": outputBit,
	"OP": outputPort,
	"AO": analogOut,
	"TI": tellInputs,
	"WE": writeEncoder,
	"QE": queryEncoder,
	"RS": reset,
	"TC": tellCode,
	"WT": wait,
	"MG": message,
}

// Exec runs one command line, which may hold several commands separated by
// semicolons, and returns the raw response: data lines followed by ":" on
// success, or the data produced so far followed by "?" on the first error.
func (c *Controller) Exec(line string) string {
	var out strings.Builder

	for _, cmd := range splitUnquoted(line, ';') {
		data, err := c.execOne(strings.TrimSpace(cmd))
		out.WriteString(data)
		if err != nil {
			c.mu.Lock()
			c.lastError = *err
			c.mu.Unlock()
			out.WriteByte('?')
			return out.String()
		}
	}

	out.WriteByte(':')
	return out.String()
}

func (c *Controller) execOne(cmd string) (string, *cmdError) {
	if cmd == "" {
		return "", nil
	}
	if cmd == REVISION_QUERY {
		return fmt.Sprintf("%s %s\r\n", c.config.Model, c.config.Revision), nil
	}
	if len(cmd) < 2 {
		return "", &errUnrecognized
	}

	h, ok := handlers[strings.ToUpper(cmd[:2])]
	if !ok {
		return "", &errUnrecognized
	}

	var args []string
	if rest := strings.TrimSpace(cmd[2:]); rest != "" {
		args = splitUnquoted(rest, ',')
		for i := range args {
			args[i] = strings.TrimSpace(args[i])
		}
	}

	return h(c, args)
}

// splitUnquoted splits s at every sep that is not inside a quoted string
func splitUnquoted(s string, sep byte) []string {
	var parts []string
	quoted := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case sep:
			if !quoted {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// intArg parses a whole number in [lo, hi]
func intArg(arg string, lo, hi int) (int, *cmdError) {
	v, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, &errOperand
	}
	if v != math.Trunc(v) || v < float64(lo) || v > float64(hi) {
		return 0, &errRange
	}
	return int(v), nil
}

func floatArg(arg string) (float64, *cmdError) {
	v, err := strconv.ParseFloat(arg, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &errOperand
	}
	return v, nil
}

func oneArg(args []string) (string, *cmdError) {
	if len(args) != 1 || args[0] == "" {
		return "", &errOperand
	}
	return args[0], nil
}

func writeBit(c *Controller, bit int, value bool) {
	c.mutate(func() {
		if value {
			c.outputs |= 1 << bit
		} else {
			c.outputs &^= 1 << bit
		}
	})
}

func setBit(c *Controller, args []string) (string, *cmdError) {
	arg, err := oneArg(args)
	if err != nil {
		return "", err
	}
	bit, err := intArg(arg, 0, globals.DIGITAL_BITS-1)
	if err != nil {
		return "", err
	}
	writeBit(c, bit, true)
	return "", nil
}

func clearBit(c *Controller, args []string) (string, *cmdError) {
	arg, err := oneArg(args)
	if err != nil {
		return "", err
	}
	bit, err := intArg(arg, 0, globals.DIGITAL_BITS-1)
	if err != nil {
		return "", err
	}
	writeBit(c, bit, false)
	return "", nil
}

// OB n,v sets bit n when v is nonzero
func outputBit(c *Controller, args []string) (string, *cmdError) {
	if len(args) != 2 {
		return "", &errOperand
	}
	bit, err := intArg(args[0], 0, globals.DIGITAL_BITS-1)
	if err != nil {
		return "", err
	}
	v, err := floatArg(args[1])
	if err != nil {
		return "", err
	}
	writeBit(c, bit, v != 0)
	return "", nil
}

// OP m,n writes whole banks, an empty operand leaves that bank alone
func outputPort(c *Controller, args []string) (string, *cmdError) {
	if len(args) == 0 || len(args) > globals.DIGITAL_BANKS {
		return "", &errOperand
	}

	values := make([]int, len(args))
	for i, arg := range args {
		if arg == "" {
			values[i] = -1
			continue
		}
		v, err := intArg(arg, 0, 0xFF)
		if err != nil {
			return "", err
		}
		values[i] = v
	}

	c.mutate(func() {
		for bank, v := range values {
			if v < 0 {
				continue
			}
			shift := bank * globals.BITS_PER_BANK
			c.outputs = (c.outputs &^ (0xFF << shift)) | uint16(v)<<shift
		}
	})
	return "", nil
}

func analogOut(c *Controller, args []string) (string, *cmdError) {
	if len(args) != 2 {
		return "", &errOperand
	}
	channel, err := intArg(args[0], 0, globals.ANALOG_CHANNELS-1)
	if err != nil {
		return "", err
	}
	volts, err := floatArg(args[1])
	if err != nil {
		return "", err
	}
	if volts < c.config.AnalogMin || volts > c.config.AnalogMax {
		return "", &errRange
	}

	c.mutate(func() {
		c.analogOut[channel] = volts
	})
	return "", nil
}

func (c *Controller) inputBank(bank int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int(c.inputsLocked()>>(bank*globals.BITS_PER_BANK)) & 0xFF
}

func (c *Controller) outputBank(bank int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int(c.outputs>>(bank*globals.BITS_PER_BANK)) & 0xFF
}

func tellInputs(c *Controller, args []string) (string, *cmdError) {
	bank := 0
	if len(args) > 0 {
		arg, err := oneArg(args)
		if err != nil {
			return "", err
		}
		if bank, err = intArg(arg, 0, globals.DIGITAL_BANKS-1); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("% d\r\n", c.inputBank(bank)), nil
}

func writeEncoder(c *Controller, args []string) (string, *cmdError) {
	if len(args) != 2 {
		return "", &errOperand
	}
	axis, err := intArg(args[0], 0, globals.ENCODER_CHANNELS-1)
	if err != nil {
		return "", err
	}
	count, err := intArg(args[1], math.MinInt32, math.MaxInt32)
	if err != nil {
		return "", err
	}

	c.mutate(func() {
		c.encoders[axis] = count
	})
	return "", nil
}

func queryEncoder(c *Controller, args []string) (string, *cmdError) {
	c.mu.Lock()
	encoders := c.encoders
	c.mu.Unlock()

	if len(args) == 0 {
		parts := make([]string, len(encoders))
		for i, count := range encoders {
			parts[i] = fmt.Sprintf("% d", count)
		}
		return strings.Join(parts, ",") + "\r\n", nil
	}

	arg, err := oneArg(args)
	if err != nil {
		return "", err
	}
	axis, err := intArg(arg, 0, globals.ENCODER_CHANNELS-1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("% d\r\n", encoders[axis]), nil
}

func reset(c *Controller, args []string) (string, *cmdError) {
	if len(args) != 0 {
		return "", &errOperand
	}

	c.mutate(func() {
		c.outputs = 0
		c.analogOut = [globals.ANALOG_CHANNELS]float64{}
		c.encoders = [globals.ENCODER_CHANNELS]int{}
		c.lastError = errNone
	})
	return "", nil
}

// TC0 reports the code of the last error, TC1 adds its description
func tellCode(c *Controller, args []string) (string, *cmdError) {
	verbose := 0
	if len(args) > 0 {
		arg, err := oneArg(args)
		if err != nil {
			return "", err
		}
		if verbose, err = intArg(arg, 0, 1); err != nil {
			return "", err
		}
	}

	c.mu.Lock()
	last := c.lastError
	c.mu.Unlock()

	if verbose == 1 && last.code != 0 {
		return fmt.Sprintf("% d %s\r\n", last.code, last.text), nil
	}
	return fmt.Sprintf("% d\r\n", last.code), nil
}

func wait(c *Controller, args []string) (string, *cmdError) {
	arg, err := oneArg(args)
	if err != nil {
		return "", err
	}
	ms, err := intArg(arg, 0, int(MAX_WAIT/time.Millisecond))
	if err != nil {
		return "", err
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
	return "", nil
}

func message(c *Controller, args []string) (string, *cmdError) {
	if len(args) == 0 {
		return "", &errOperand
	}

	parts := make([]string, len(args))
	for i, arg := range args {
		v, err := c.operand(arg)
		if err != nil {
			return "", err
		}
		parts[i] = v
	}
	return strings.Join(parts, " ") + "\r\n", nil
}

// operand evaluates one MG argument
func (c *Controller) operand(arg string) (string, *cmdError) {
	if len(arg) >= 2 && arg[0] == '"' && arg[len(arg)-1] == '"' {
		return arg[1 : len(arg)-1], nil
	}

	upper := strings.ToUpper(arg)
	if strings.HasPrefix(upper, "@") {
		return c.function(upper)
	}
	if strings.HasPrefix(upper, "_") {
		return c.variable(upper)
	}

	v, err := floatArg(arg)
	if err != nil {
		return "", err
	}
	return formatNumber(v), nil
}

func formatNumber(v float64) string {
	return fmt.Sprintf("% .4f", v)
}

func formatBool(b bool) string {
	if b {
		return formatNumber(1)
	}
	return formatNumber(0)
}

// function evaluates @OUT[n], @IN[n], @AO[n] and @AN[n]
func (c *Controller) function(arg string) (string, *cmdError) {
	open := strings.IndexByte(arg, '[')
	if open < 0 || !strings.HasSuffix(arg, "]") {
		return "", &errOperand
	}
	name := arg[1:open]
	index := arg[open+1 : len(arg)-1]

	switch name {
	case "OUT", "IN":
		bit, err := intArg(index, 0, globals.DIGITAL_BITS-1)
		if err != nil {
			return "", err
		}
		var v bool
		if name == "OUT" {
			v, _ = c.DigitalOutput(bit)
		} else {
			v, _ = c.DigitalInput(bit)
		}
		return formatBool(v), nil
	case "AO", "AN":
		channel, err := intArg(index, 0, globals.ANALOG_CHANNELS-1)
		if err != nil {
			return "", err
		}
		var v float64
		if name == "AO" {
			v, _ = c.AnalogOutput(channel)
		} else {
			v, _ = c.AnalogInput(channel)
		}
		return formatNumber(v), nil
	}
	return "", &errOperand
}

// variable evaluates the _OP, _TI, _QE and _BN operands
func (c *Controller) variable(arg string) (string, *cmdError) {
	switch arg {
	case "_BN":
		return fmt.Sprintf("% d", c.config.SerialNumber), nil
	case "_OP0", "_OP1":
		return fmt.Sprintf("% d", c.outputBank(int(arg[3]-'0'))), nil
	case "_TI0", "_TI1":
		return fmt.Sprintf("% d", c.inputBank(int(arg[3]-'0'))), nil
	case "_QE0", "_QE1":
		c.mu.Lock()
		defer c.mu.Unlock()
		return fmt.Sprintf("% d", c.encoders[arg[3]-'0']), nil
	}
	return "", &errOperand
}
