package gclib

import (
	"net"
	"strconv"
	"strings"
	"time"
)

const DEFAULT_TCP_PORT = 23
const DEFAULT_TIMEOUT = 5000 * time.Millisecond
const DEFAULT_BAUD_RATE = 115200

// Address is a parsed GOpen address string, e.g. "192.168.0.120 -d" or
// "/dev/ttyUSB0 --baud 19200".
type Address struct {
	Raw      string
	Host     string
	Port     int
	Device   string
	BaudRate int
	Timeout  time.Duration
	Direct   bool
}

func (a Address) IsSerial() bool {
	return a.Device != ""
}

// Target is the dial target without any flags.
func (a Address) Target() string {
	if a.IsSerial() {
		return a.Device
	}
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

func isSerialDevice(name string) bool {
	upper := strings.ToUpper(name)
	if strings.HasPrefix(upper, "COM") {
		_, err := strconv.Atoi(upper[3:])
		return err == nil
	}
	return strings.HasPrefix(name, "/dev/")
}

// ParseAddress splits an address string into its target and option flags.
// Unknown flags and malformed values are rejected with G_BAD_ADDRESS.
func ParseAddress(raw string) (Address, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return Address{}, G_BAD_ADDRESS
	}

	addr := Address{
		Raw:      raw,
		BaudRate: DEFAULT_BAUD_RATE,
		Timeout:  DEFAULT_TIMEOUT,
	}

	target := fields[0]
	if strings.HasPrefix(target, "-") {
		return Address{}, G_BAD_ADDRESS
	}

	if isSerialDevice(target) {
		addr.Device = target
	} else {
		host, port, err := net.SplitHostPort(target)
		if err != nil {
			// no port given
			host = target
			port = strconv.Itoa(DEFAULT_TCP_PORT)
		}
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 || p > 65535 || host == "" {
			return Address{}, G_BAD_ADDRESS
		}
		addr.Host = host
		addr.Port = p
	}

	// every flag except -d takes exactly one value
	for i := 1; i < len(fields); i++ {
		flag := fields[i]
		switch flag {
		case "-d", "--direct":
			addr.Direct = true
			continue
		case "-t", "--timeout", "--baud", "-s", "--subscribe":
		default:
			return Address{}, G_BAD_ADDRESS
		}

		if i+1 >= len(fields) {
			return Address{}, G_BAD_ADDRESS
		}
		i++
		value := fields[i]

		switch flag {
		case "-t", "--timeout":
			ms, err := strconv.Atoi(value)
			if err != nil || ms <= 0 {
				return Address{}, G_BAD_ADDRESS
			}
			addr.Timeout = time.Duration(ms) * time.Millisecond
		case "--baud":
			baud, err := strconv.Atoi(value)
			if err != nil || baud <= 0 {
				return Address{}, G_BAD_ADDRESS
			}
			addr.BaudRate = baud
		}
	}

	return addr, nil
}
