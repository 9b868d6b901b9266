package gclib

import (
	"errors"
	"fmt"
)

// GReturn is the status code every driver call reports. G_NO_ERROR is never
// returned as an error value; successful calls return a nil error.
type GReturn int

// status codes, numbered as in gclib_errors.h
const (
	G_NO_ERROR                            GReturn = 0
	G_GCLIB_ERROR                         GReturn = -1
	G_BAD_RESPONSE_QUESTION_MARK          GReturn = -1009
	G_BAD_VALUE_RANGE                     GReturn = -1012
	G_BAD_LOST_DATA                       GReturn = -1014
	G_BAD_ADDRESS                         GReturn = -1016
	G_TIMEOUT                             GReturn = -1100
	G_OPEN_ERROR                          GReturn = -1101
	G_READ_ERROR                          GReturn = -1102
	G_WRITE_ERROR                         GReturn = -1103
	G_COMMAND_CALLED_WITH_ILLEGAL_COMMAND GReturn = -1104
	G_UNSUPPORTED_FUNCTION                GReturn = -1106
	G_CONNECTION_NOT_ESTABLISHED          GReturn = -1201
)

var descriptions = map[GReturn]string{
	G_NO_ERROR:                            "no error",
	G_GCLIB_ERROR:                         "general library error",
	G_BAD_RESPONSE_QUESTION_MARK:          "controller responded with a question mark",
	G_BAD_VALUE_RANGE:                     "value out of range",
	G_BAD_LOST_DATA:                       "buffer too small, response truncated",
	G_BAD_ADDRESS:                         "bad address",
	G_TIMEOUT:                             "operation timed out",
	G_OPEN_ERROR:                          "unable to open connection",
	G_READ_ERROR:                          "read error",
	G_WRITE_ERROR:                         "write error",
	G_COMMAND_CALLED_WITH_ILLEGAL_COMMAND: "command not allowed through GCommand",
	G_UNSUPPORTED_FUNCTION:                "function not supported by this driver",
	G_CONNECTION_NOT_ESTABLISHED:          "connection not established",
}

func (r GReturn) Error() string {
	if desc, ok := descriptions[r]; ok {
		return fmt.Sprintf("gclib %d: %s", int(r), desc)
	}
	return fmt.Sprintf("gclib %d", int(r))
}

// status converts a raw code into the error convention used by the package.
func status(code GReturn) error {
	if code == G_NO_ERROR {
		return nil
	}
	return code
}

// Code recovers the driver status from an error returned by a Driver. A nil
// error is G_NO_ERROR; errors that carry no status report G_GCLIB_ERROR.
func Code(err error) GReturn {
	if err == nil {
		return G_NO_ERROR
	}
	var code GReturn
	if errors.As(err, &code) {
		return code
	}
	return G_GCLIB_ERROR
}
