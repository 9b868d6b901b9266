// Package config loads settings from a YAML file and then from GALIL_*
// environment variables. Commands apply their flags last.
package config

import (
	"fmt"
	"os"

	"UCLA-Rocket-Project/GALIL/internal/globals"
	"UCLA-Rocket-Project/GALIL/internal/simulator"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v2"
)

const DEFAULT_LOG_FILE = "logs/galil.log"
const DEFAULT_HISTORY_FILE = "data/history.db"

type Config struct {
	// gclib address strings offered as targets, e.g. "192.168.0.40 -d"
	Addresses []string `yaml:"addresses" env:"GALIL_ADDRESSES" envSeparator:";"`

	// read outputs back from a simulator instead of the hardware
	Simulator bool `yaml:"simulator" env:"GALIL_SIMULATOR"`

	SimCommandAddr string `yaml:"sim_command_addr" env:"GALIL_SIM_COMMAND_ADDR"`
	// empty means run the simulator in-process
	SimInspectAddr string `yaml:"sim_inspect_addr" env:"GALIL_SIM_INSPECT_ADDR"`

	LogFile     string `yaml:"log_file" env:"GALIL_LOG_FILE"`
	HistoryFile string `yaml:"history_file" env:"GALIL_HISTORY_FILE"`

	Sim simulator.Config `yaml:"sim"`
}

func Default() Config {
	return Config{
		SimCommandAddr: globals.SIM_COMMAND_ADDR,
		LogFile:        DEFAULT_LOG_FILE,
		HistoryFile:    DEFAULT_HISTORY_FILE,
		Sim:            simulator.DefaultConfig(),
	}
}

// Load reads path over the defaults, skipping the file when path is empty,
// then applies the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("environment: %w", err)
	}

	return cfg, nil
}
