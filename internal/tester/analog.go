package tester

import (
	"errors"
	"strings"

	"UCLA-Rocket-Project/GALIL/internal/embedded"
	"UCLA-Rocket-Project/GALIL/internal/galil"
	"UCLA-Rocket-Project/GALIL/internal/gclib"
	"UCLA-Rocket-Project/GALIL/internal/globals"
)

// test voltages stay inside 0-5 V so they are safe on either output range
var analogVoltages = []float64{0, 1.25, 2.5, 3.3, 5}

func AnalogOutputs(t *T, gl *galil.Galil) {
	for channel := 0; channel < globals.ANALOG_CHANNELS; channel++ {
		t.Logf("sweeping channel %d", channel)
		for _, volts := range analogVoltages {
			Require(t, gl.AnalogOutput(channel, volts), "AO %d at %.2f V", channel, volts)

			out, err := gl.Functions().GetAnalogOutput(channel)
			Require(t, err)
			ExpectEqual(t, volts, out, "output %d", channel)

			if globals.ANALOG_LOOPBACK {
				in, err := gl.AnalogInput(channel)
				Require(t, err)
				ExpectEqual(t, volts, in, "input %d looped back from output %d", channel, channel)
			}
		}
		Require(t, gl.AnalogOutput(channel, 0))
	}

	t.Logf("rejecting a voltage above %.1f V", globals.ANALOG_MAX)
	Require(t, gl.AnalogOutput(0, 1))
	err := gl.AnalogOutput(0, globals.ANALOG_MAX+5)
	ExpectEqual(t, gclib.G_BAD_RESPONSE_QUESTION_MARK, gclib.Code(err))

	reason, err := gl.LastError()
	Require(t, err)
	t.Logf("controller reported %q", reason)
	ExpectTrue(t, strings.HasPrefix(reason, "6"), "TC1 after out of range AO")

	out, err := gl.Functions().GetAnalogOutput(0)
	Require(t, err)
	ExpectEqual(t, 1.0, out, "output 0 must keep its value after a rejected AO")

	t.Logf("rejecting channels outside 0-%d", globals.ANALOG_CHANNELS-1)
	ExpectTrue(t, errors.Is(gl.AnalogOutput(globals.ANALOG_CHANNELS, 1), galil.ErrOutOfRange))
	_, err = gl.Functions().GetAnalogOutput(globals.ANALOG_CHANNELS)
	ExpectTrue(t, errors.Is(err, embedded.ErrOutOfRange))

	Require(t, gl.AnalogOutput(0, 0))
}
