package bench

import (
	"context"
	"testing"
	"time"

	"UCLA-Rocket-Project/GALIL/internal/config"
	"UCLA-Rocket-Project/GALIL/internal/gclib"
	"UCLA-Rocket-Project/GALIL/internal/simulator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHardwareTargets(t *testing.T) {
	cfg := config.Default()
	cfg.Addresses = []string{"192.168.0.40 -d"}

	b, err := Open(cfg, gclib.NewLibrary(zap.NewNop()), zap.NewNop())
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, []string{"192.168.0.40 -d"}, b.Targets())
	assert.False(t, b.Simulated())
	assert.ErrorIs(t, b.Watch(context.Background(), func(simulator.State) {}), ErrNoSimulator)
}

func TestInProcessSimulator(t *testing.T) {
	cfg := config.Default()
	cfg.Simulator = true

	b, err := Open(cfg, gclib.NewLibrary(zap.NewNop()), zap.NewNop())
	require.NoError(t, err)
	defer b.Close()

	require.Len(t, b.Targets(), 1)
	assert.Contains(t, b.Targets()[0], "127.0.0.1:")

	ts, err := b.Connect(b.Targets()[0])
	require.NoError(t, err)
	defer ts.Close()

	report := ts.RunTests()
	assert.True(t, report.Passed(), "%v", report.Failure)
}

func TestWatchInProcess(t *testing.T) {
	cfg := config.Default()
	cfg.Simulator = true

	b, err := Open(cfg, gclib.NewLibrary(zap.NewNop()), zap.NewNop())
	require.NoError(t, err)
	defer b.Close()

	ts, err := b.Connect(b.Targets()[0])
	require.NoError(t, err)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	seen := make(chan simulator.State, 16)
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- b.Watch(ctx, func(s simulator.State) {
			select {
			case seen <- s:
			default:
			}
		})
	}()

	// the first snapshot is the current state, then every change follows
	<-seen
	require.NoError(t, ts.Galil().DigitalBitOutput(9, true))
	for {
		select {
		case s := <-seen:
			if s.DigitalOutputs[9] {
				cancel()
				assert.NoError(t, <-watchErr)
				return
			}
		case <-ctx.Done():
			t.Fatal("no update for output 9")
		}
	}
}

func TestRemoteSimulatorTarget(t *testing.T) {
	cfg := config.Default()
	cfg.Simulator = true
	cfg.SimInspectAddr = "127.0.0.1:8023"

	b, err := Open(cfg, gclib.NewLibrary(zap.NewNop()), zap.NewNop())
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, []string{cfg.SimCommandAddr + " -d"}, b.Targets())
}

func TestConnectFailure(t *testing.T) {
	b, err := Open(config.Default(), gclib.NewLibrary(zap.NewNop()), zap.NewNop())
	require.NoError(t, err)
	defer b.Close()

	_, err = b.Connect("")
	assert.Equal(t, gclib.G_BAD_ADDRESS, gclib.Code(err))
}
