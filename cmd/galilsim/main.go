package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"UCLA-Rocket-Project/GALIL/internal/config"
	"UCLA-Rocket-Project/GALIL/internal/globals"
	"UCLA-Rocket-Project/GALIL/internal/logger"
	"UCLA-Rocket-Project/GALIL/internal/simulator"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const SHUTDOWN_TIMEOUT = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "YAML config file")
	commandAddr := flag.String("addr", "", "command port address (default "+globals.SIM_COMMAND_ADDR+")")
	inspectAddr := flag.String("inspect", globals.SIM_INSPECT_ADDR, "inspection API address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if *commandAddr != "" {
		cfg.SimCommandAddr = *commandAddr
	}

	log, err := logger.NewLogger(cfg.LogFile, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, *inspectAddr, log); err != nil {
		log.Error("Simulator stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.Config, inspectAddr string, log *zap.Logger) error {
	ctrl := simulator.NewController(cfg.Sim)
	log.Info("Simulating controller",
		zap.String("model", cfg.Sim.Model),
		zap.Bool("analog_loopback", cfg.Sim.AnalogLoopback),
	)

	httpServer := &http.Server{
		Addr:    inspectAddr,
		Handler: simulator.NewInspectHandler(ctrl, log),
	}

	httpErr := make(chan error, 1)
	go func() {
		log.Info("Inspection API listening", zap.String("addr", inspectAddr))
		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		httpErr <- err
	}()

	cmdCtx, stopCommands := context.WithCancel(ctx)
	defer stopCommands()

	cmdErr := make(chan error, 1)
	go func() {
		cmdErr <- simulator.NewServer(ctrl, log).ListenAndServe(cmdCtx, cfg.SimCommandAddr)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-httpErr:
	case err = <-cmdErr:
	}
	log.Info("Shutting down simulator")
	stopCommands()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), SHUTDOWN_TIMEOUT)
	defer cancel()
	return multierr.Append(err, httpServer.Shutdown(shutdownCtx))
}
