package main

import (
	"flag"
	"fmt"
	"os"

	"UCLA-Rocket-Project/GALIL/internal/bench"
	"UCLA-Rocket-Project/GALIL/internal/config"
	"UCLA-Rocket-Project/GALIL/internal/gclib"
	"UCLA-Rocket-Project/GALIL/internal/history"
	"UCLA-Rocket-Project/GALIL/internal/logger"
	"UCLA-Rocket-Project/GALIL/internal/terminal"
	"UCLA-Rocket-Project/GALIL/internal/tester"

	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "YAML config file")
	sim := flag.Bool("sim", false, "read outputs back from a simulator")
	addr := flag.String("addr", "", `controller address, e.g. "192.168.0.40 -d"`)
	headless := flag.Bool("headless", false, "run every group without the UI and print the report")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "sim" {
			cfg.Simulator = *sim
		}
	})
	if *addr != "" {
		cfg.Addresses = []string{*addr}
	}

	log, err := logger.NewLogger(cfg.LogFile, *headless)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 2
	}
	defer log.Sync()

	store, err := history.Open(cfg.HistoryFile, log)
	if err != nil {
		log.Error("Error opening history", zap.Error(err))
		return 2
	}
	defer store.Close()

	b, err := bench.Open(cfg, gclib.Default(log), log)
	if err != nil {
		log.Error("Error starting simulator", zap.Error(err))
		return 2
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Warn("Error closing connections", zap.Error(err))
		}
	}()

	if *headless {
		return runHeadless(b.Targets(), b.Connect, store, log)
	}

	lister := func() ([]string, error) {
		targets := b.Targets()
		if b.Simulated() {
			return targets, nil
		}
		ports, err := gclib.ListPorts()
		if err != nil {
			log.Warn("Could not list serial ports", zap.Error(err))
			return targets, nil
		}
		return append(append([]string{}, targets...), ports...), nil
	}
	save := func(report tester.Report) error {
		_, err := store.Save(report)
		return err
	}

	if err := terminal.StartApplication(lister, b.Connect, save, log); err != nil {
		log.Error("Terminal exited with error", zap.Error(err))
		return 1
	}
	return 0
}

func runHeadless(targets []string, connect terminal.Connector, store *history.Store, log *zap.Logger) int {
	if len(targets) == 0 {
		log.Error("No controller address; pass -addr or set addresses in the config")
		return 2
	}

	ts, err := connect(targets[0])
	if err != nil {
		log.Error("Error connecting", zap.String("target", targets[0]), zap.Error(err))
		return 1
	}
	defer ts.Close()

	ts.SetOutput(os.Stdout)
	report := ts.RunTests()
	fmt.Print(report)

	if _, err := store.Save(report); err != nil {
		log.Warn("Error saving report", zap.Error(err))
	}

	if !report.Passed() {
		return 1
	}
	return 0
}
