// Package tester checks a controller's I/O through the embedded functions
// and reports the outcome of each test group.
package tester

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"reflect"
	"runtime"

	"UCLA-Rocket-Project/GALIL/internal/globals"
)

// Failure is the first expectation that did not hold in a run.
type Failure struct {
	Group    string `json:"group"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Message  string `json:"message"`
	Location string `json:"location"`
}

func (f *Failure) Error() string {
	msg := f.Message
	if msg == "" {
		msg = "expectation failed"
	}
	return fmt.Sprintf("[%s] %s: %s (expected %s, got %s)", f.Group, f.Location, msg, f.Expected, f.Actual)
}

// abort unwinds a group on the first failed expectation. Only the runner
// recovers it.
type abort struct {
	failure *Failure
}

// T is handed to a group body. It counts the checks made and writes the
// group's progress lines.
type T struct {
	group  string
	out    io.Writer
	checks int
}

func newT(group string, out io.Writer) *T {
	if out == nil {
		out = io.Discard
	}
	return &T{group: group, out: out}
}

func (t *T) Group() string {
	return t.group
}

func (t *T) Checks() int {
	return t.checks
}

// Logf writes one progress line prefixed with the group name.
func (t *T) Logf(format string, args ...any) {
	fmt.Fprintf(t.out, "[%s]: %s\n", t.group, fmt.Sprintf(format, args...))
}

func message(msgAndArgs []any) string {
	if len(msgAndArgs) == 0 {
		return ""
	}
	if format, ok := msgAndArgs[0].(string); ok {
		return fmt.Sprintf(format, msgAndArgs[1:]...)
	}
	return fmt.Sprint(msgAndArgs...)
}

// fail must be called directly by an Expect function so the reported
// location is the line inside the group body.
func (t *T) fail(expected, actual any, msgAndArgs []any) {
	location := "unknown"
	if _, file, line, ok := runtime.Caller(2); ok {
		location = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	f := &Failure{
		Group:    t.group,
		Expected: fmt.Sprintf("%v", expected),
		Actual:   fmt.Sprintf("%v", actual),
		Message:  message(msgAndArgs),
		Location: location,
	}
	fmt.Fprintf(t.out, "[%s]: FAILED %s\n", t.group, f.Error())
	panic(abort{failure: f})
}

func equal[V comparable](a, b V) bool {
	va := reflect.ValueOf(a)
	switch va.Kind() {
	case reflect.Float32, reflect.Float64:
		return math.Abs(va.Float()-reflect.ValueOf(b).Float()) <= globals.FLOAT_TOLERANCE
	}
	return a == b
}

// ExpectEqual stops the run unless actual equals expected. Floating point
// values only need to agree within globals.FLOAT_TOLERANCE, and a NaN on
// either side never agrees.
func ExpectEqual[V comparable](t *T, expected, actual V, msgAndArgs ...any) {
	t.checks++
	if !equal(expected, actual) {
		t.fail(expected, actual, msgAndArgs)
	}
}

func ExpectTrue(t *T, condition bool, msgAndArgs ...any) {
	t.checks++
	if !condition {
		t.fail(true, false, msgAndArgs)
	}
}

func ExpectFalse(t *T, condition bool, msgAndArgs ...any) {
	t.checks++
	if condition {
		t.fail(false, true, msgAndArgs)
	}
}

// Require stops the run if a controller call returned an error.
func Require(t *T, err error, msgAndArgs ...any) {
	t.checks++
	if err != nil {
		t.fail("no error", err, msgAndArgs)
	}
}
