package embedded

import (
	"UCLA-Rocket-Project/GALIL/internal/gclib"
	"UCLA-Rocket-Project/GALIL/internal/simulator"

	"go.uber.org/zap"
)

// Simulated reads outputs straight from the simulator registers.
type Simulated struct {
	passthrough

	inspector simulator.Inspector
	logger    *zap.Logger
}

var _ Functions = (*Simulated)(nil)

func NewSimulated(driver gclib.Driver, inspector simulator.Inspector, logger *zap.Logger) *Simulated {
	return &Simulated{
		passthrough: passthrough{driver: driver},
		inspector:   inspector,
		logger:      logger,
	}
}

func (s *Simulated) GetDigitalOutput(bit int) (bool, error) {
	if err := checkBit(bit); err != nil {
		return false, err
	}

	v, err := s.inspector.DigitalOutput(bit)
	if err != nil {
		s.logger.Warn("Simulator readback failed", zap.Error(err), zap.Int("bit", bit))
	}
	return v, err
}

func (s *Simulated) GetAnalogOutput(channel int) (float64, error) {
	if err := checkChannel(channel); err != nil {
		return 0, err
	}

	v, err := s.inspector.AnalogOutput(channel)
	if err != nil {
		s.logger.Warn("Simulator readback failed", zap.Error(err), zap.Int("channel", channel))
	}
	return v, err
}

func (s *Simulated) Close() error {
	return nil
}
