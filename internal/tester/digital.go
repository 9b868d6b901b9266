package tester

import (
	"errors"

	"UCLA-Rocket-Project/GALIL/internal/embedded"
	"UCLA-Rocket-Project/GALIL/internal/galil"
	"UCLA-Rocket-Project/GALIL/internal/globals"
)

const (
	GROUP_DIGITAL_OUTPUTS = "Digital Outputs"
	GROUP_DIGITAL_INPUTS  = "Digital Inputs"
	GROUP_ANALOG_OUTPUTS  = "Analog Outputs"
)

// Groups returns the standard groups in the order they run.
func Groups() []Group {
	return []Group{
		{Name: GROUP_DIGITAL_OUTPUTS, Run: DigitalOutputs},
		{Name: GROUP_DIGITAL_INPUTS, Run: DigitalInputs},
		{Name: GROUP_ANALOG_OUTPUTS, Run: AnalogOutputs},
	}
}

// expectOutputs checks every digital output against want.
func expectOutputs(t *T, gl *galil.Galil, want uint16) {
	for bit := 0; bit < globals.DIGITAL_BITS; bit++ {
		on, err := gl.Functions().GetDigitalOutput(bit)
		Require(t, err, "reading output %d", bit)
		ExpectEqual(t, want&(1<<bit) != 0, on, "output %d", bit)
	}
}

func DigitalOutputs(t *T, gl *galil.Galil) {
	t.Logf("clearing all outputs")
	Require(t, gl.DigitalOutput(0))
	expectOutputs(t, gl, 0)

	t.Logf("walking a single bit across all outputs")
	for bit := 0; bit < globals.DIGITAL_BITS; bit++ {
		Require(t, gl.DigitalBitOutput(bit, true), "setting output %d", bit)
		expectOutputs(t, gl, 1<<bit)
		Require(t, gl.DigitalBitOutput(bit, false), "clearing output %d", bit)
	}

	for _, word := range []uint16{0xFFFF, 0xA55A, 0x8001} {
		t.Logf("writing word 0x%04X", word)
		Require(t, gl.DigitalOutput(word))
		expectOutputs(t, gl, word)
	}

	t.Logf("writing bank 1 leaves bank 0 alone")
	Require(t, gl.DigitalByteOutput(1, 0x3C))
	expectOutputs(t, gl, 0x3C01)

	t.Logf("rejecting bits outside 0-%d", globals.DIGITAL_BITS-1)
	ExpectTrue(t, errors.Is(gl.DigitalBitOutput(globals.DIGITAL_BITS, true), galil.ErrOutOfRange), "setting output %d", globals.DIGITAL_BITS)
	_, err := gl.Functions().GetDigitalOutput(-1)
	ExpectTrue(t, errors.Is(err, embedded.ErrOutOfRange), "reading output -1")

	Require(t, gl.DigitalOutput(0))
}

// DigitalInputs relies on the loopback bank's outputs being wired to the
// matching inputs.
func DigitalInputs(t *T, gl *galil.Galil) {
	bank := globals.LOOPBACK_BANK
	first := bank * globals.BITS_PER_BANK

	t.Logf("clearing all outputs")
	Require(t, gl.DigitalOutput(0))
	value, err := gl.DigitalByteInput(bank)
	Require(t, err)
	ExpectEqual(t, uint8(0), value, "bank %d with outputs cleared", bank)

	for _, want := range []uint8{0xFF, 0xA5, 0x5A, 0x01, 0x80} {
		t.Logf("looping 0x%02X back through bank %d", want, bank)
		Require(t, gl.DigitalByteOutput(bank, want))

		value, err := gl.DigitalByteInput(bank)
		Require(t, err)
		ExpectEqual(t, want, value, "bank %d byte read", bank)

		word, err := gl.DigitalInput()
		Require(t, err)
		ExpectEqual(t, want, uint8(word>>(bank*globals.BITS_PER_BANK)), "bank %d word read", bank)
	}

	t.Logf("reading single bits")
	Require(t, gl.DigitalByteOutput(bank, 0))
	for bit := first; bit < first+globals.BITS_PER_BANK; bit++ {
		Require(t, gl.DigitalBitOutput(bit, true))
		for other := first; other < first+globals.BITS_PER_BANK; other++ {
			on, err := gl.DigitalBitInput(other)
			Require(t, err)
			ExpectEqual(t, other == bit, on, "input %d while output %d is set", other, bit)
		}
		Require(t, gl.DigitalBitOutput(bit, false))
	}

	t.Logf("rejecting bits outside 0-%d", globals.DIGITAL_BITS-1)
	_, err = gl.DigitalBitInput(globals.DIGITAL_BITS)
	ExpectTrue(t, errors.Is(err, galil.ErrOutOfRange), "reading input %d", globals.DIGITAL_BITS)
	_, err = gl.DigitalByteInput(globals.DIGITAL_BANKS)
	ExpectTrue(t, errors.Is(err, galil.ErrOutOfRange), "reading bank %d", globals.DIGITAL_BANKS)

	Require(t, gl.DigitalOutput(0))
}
