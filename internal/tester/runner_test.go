package tester

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"UCLA-Rocket-Project/GALIL/internal/embedded"
	"UCLA-Rocket-Project/GALIL/internal/galil"
	"UCLA-Rocket-Project/GALIL/internal/gclib"
	"UCLA-Rocket-Project/GALIL/internal/simulator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTester(t *testing.T, config simulator.Config) *Tester {
	ctrl := simulator.NewController(config)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		simulator.NewServer(ctrl, zap.NewNop()).Serve(ctx, ln)
	}()

	funcs := embedded.NewSimulated(gclib.NewLibrary(zap.NewNop()), ctrl, zap.NewNop())
	ts, err := New(funcs, ln.Addr().String()+" -d", zap.NewNop())
	require.NoError(t, err)

	t.Cleanup(func() {
		ts.Close()
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	})
	return ts
}

func TestRunTestsPasses(t *testing.T) {
	ts := newTester(t, simulator.DefaultConfig())
	var out bytes.Buffer
	ts.SetOutput(&out)

	report := ts.RunTests()
	require.True(t, report.Passed(), "%v", report.Failure)
	require.Len(t, report.Groups, 3)

	for i, name := range []string{GROUP_DIGITAL_OUTPUTS, GROUP_DIGITAL_INPUTS, GROUP_ANALOG_OUTPUTS} {
		assert.Equal(t, name, report.Groups[i].Name)
		assert.Equal(t, STATUS_PASS, report.Groups[i].Status)
		assert.Greater(t, report.Groups[i].Checks, 0)
	}
	assert.Contains(t, report.Info, "RIO47142")
	assert.Contains(t, out.String(), "[Digital Inputs]: looping 0xA5 back through bank 0\n")
	assert.Contains(t, report.String(), "PASSED")
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	config := simulator.DefaultConfig()
	config.AnalogLoopback = false
	ts := newTester(t, config)

	report := ts.RunTests()
	require.False(t, report.Passed())
	require.NotNil(t, report.Failure)
	assert.Equal(t, GROUP_ANALOG_OUTPUTS, report.Failure.Group)
	assert.Contains(t, report.Failure.Message, "looped back")
	assert.Equal(t, STATUS_FAIL, report.Groups[2].Status)
	assert.Contains(t, report.String(), "FAILED")
}

func TestRunSkipsAfterFailure(t *testing.T) {
	ts := newTester(t, simulator.DefaultConfig())

	ran := false
	groups := []Group{
		{Name: "Broken", Run: func(t *T, gl *galil.Galil) {
			_, err := gl.Command("XX")
			Require(t, err)
		}},
		{Name: "After", Run: func(t *T, gl *galil.Galil) { ran = true }},
	}

	var started []string
	var finished []GroupResult
	report := ts.Run(groups, Hooks{
		GroupStarted:  func(name string) { started = append(started, name) },
		GroupFinished: func(r GroupResult) { finished = append(finished, r) },
	})

	assert.False(t, ran)
	assert.Equal(t, []string{"Broken"}, started)
	require.Len(t, finished, 2)
	assert.Equal(t, STATUS_FAIL, finished[0].Status)
	assert.Equal(t, 1, finished[0].Checks)
	assert.Equal(t, STATUS_SKIPPED, finished[1].Status)
	assert.Equal(t, "Broken", report.Failure.Group)
	assert.Contains(t, report.Failure.Actual, `"XX"`)
}

func TestForeignPanicPropagates(t *testing.T) {
	ts := newTester(t, simulator.DefaultConfig())
	groups := []Group{{Name: "Panics", Run: func(t *T, gl *galil.Galil) { panic("boom") }}}

	assert.PanicsWithValue(t, "boom", func() { ts.Run(groups, Hooks{}) })
}
