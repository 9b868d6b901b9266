package globals

// I/O layout of the RIO controllers the bench is wired to
const (
	DIGITAL_BITS     = 16
	DIGITAL_BANKS    = 2
	BITS_PER_BANK    = 8
	ANALOG_CHANNELS  = 8
	ENCODER_CHANNELS = 2
)

// bank 0 outputs are wired straight into bank 0 inputs on the bench
const LOOPBACK_BANK = 0

// analog output n is wired into analog input n on the bench
const ANALOG_LOOPBACK = true

// analog output limits in volts
const (
	ANALOG_MIN = -10.0
	ANALOG_MAX = 10.0
)

// floating point comparisons in the tests allow for analog and timing noise
const FLOAT_TOLERANCE = 0.1

// default network endpoints of the simulator
const (
	SIM_COMMAND_ADDR = "127.0.0.1:2323"
	SIM_INSPECT_ADDR = "127.0.0.1:8023"
)
