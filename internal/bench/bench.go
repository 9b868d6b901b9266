// Package bench wires a driver, an optional simulator and the readback
// variant together so commands can connect testers to targets.
package bench

import (
	"context"
	"errors"
	"net"

	"UCLA-Rocket-Project/GALIL/internal/config"
	"UCLA-Rocket-Project/GALIL/internal/embedded"
	"UCLA-Rocket-Project/GALIL/internal/gclib"
	"UCLA-Rocket-Project/GALIL/internal/simulator"
	"UCLA-Rocket-Project/GALIL/internal/tester"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Bench struct {
	cfg    config.Config
	driver gclib.Driver
	logger *zap.Logger

	targets   []string
	inspector simulator.Inspector
	// one of these is set in simulator mode
	client *simulator.Client
	ctrl   *simulator.Controller
	cancel context.CancelFunc
}

// Open starts an in-process simulator when cfg asks for one without an
// inspect address.
func Open(cfg config.Config, driver gclib.Driver, logger *zap.Logger) (*Bench, error) {
	b := &Bench{
		cfg:     cfg,
		driver:  driver,
		logger:  logger,
		targets: cfg.Addresses,
		cancel:  func() {},
	}
	if !cfg.Simulator {
		return b, nil
	}

	if cfg.SimInspectAddr != "" {
		b.client = simulator.NewClient(cfg.SimInspectAddr)
		b.inspector = b.client
		b.targets = []string{cfg.SimCommandAddr + " -d"}
		return b, nil
	}

	ctrl := simulator.NewController(cfg.Sim)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	server := simulator.NewServer(ctrl, logger)
	go func() {
		if err := server.Serve(ctx, ln); err != nil {
			logger.Error("Simulator stopped", zap.Error(err))
		}
	}()

	logger.Info("Started in-process simulator", zap.String("address", ln.Addr().String()))
	b.inspector = ctrl
	b.ctrl = ctrl
	b.targets = []string{ln.Addr().String() + " -d"}
	b.cancel = cancel
	return b, nil
}

func (b *Bench) Targets() []string {
	return b.targets
}

func (b *Bench) Simulated() bool {
	return b.cfg.Simulator
}

var ErrNoSimulator = errors.New("bench: watching needs the simulator")

// Watch calls fn with the simulator's current state and then with every
// change until ctx is done.
func (b *Bench) Watch(ctx context.Context, fn func(simulator.State)) error {
	switch {
	case b.client != nil:
		return b.client.Watch(ctx, fn)
	case b.ctrl != nil:
		states, cancel := b.ctrl.Subscribe()
		defer cancel()

		fn(b.ctrl.Snapshot())
		for {
			select {
			case <-ctx.Done():
				return nil
			case s := <-states:
				fn(s)
			}
		}
	default:
		return ErrNoSimulator
	}
}

// Connect opens a tester on address. The tester owns everything it opened.
func (b *Bench) Connect(address string) (*tester.Tester, error) {
	funcs, err := embedded.New(b.driver, embedded.Options{
		UseSimulator: b.cfg.Simulator,
		Address:      address,
		Inspector:    b.inspector,
	}, b.logger)
	if err != nil {
		return nil, err
	}

	ts, err := tester.New(funcs, address, b.logger)
	if err != nil {
		return nil, multierr.Append(err, funcs.Close())
	}
	return ts, nil
}

// Close stops the in-process simulator and any connection left open.
func (b *Bench) Close() error {
	err := gclib.Shutdown(b.driver)
	b.cancel()
	return err
}
