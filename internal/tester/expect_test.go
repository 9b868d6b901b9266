package tester

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// check runs body the way the runner does and returns the failure, if any.
func check(body func(t *T)) (failure *Failure, reached bool) {
	t := newT("Check", nil)
	defer func() {
		if r := recover(); r != nil {
			failure = r.(abort).failure
		}
	}()
	body(t)
	return nil, true
}

func TestExpectEqualFloatTolerance(t *testing.T) {
	f, _ := check(func(t *T) { ExpectEqual(t, float32(1.00), float32(1.05)) })
	assert.Nil(t, f)

	f, _ = check(func(t *T) { ExpectEqual(t, float32(1.00), float32(1.20)) })
	require.NotNil(t, f)
	assert.Equal(t, "1", f.Expected)
	assert.Equal(t, "1.2", f.Actual)

	f, _ = check(func(t *T) { ExpectEqual(t, 2.5, 2.45) })
	assert.Nil(t, f)

	f, _ = check(func(t *T) { ExpectEqual(t, -3.0, 3.0) })
	assert.NotNil(t, f)
}

type volts float64

func TestExpectEqualNaN(t *testing.T) {
	f, _ := check(func(t *T) { ExpectEqual(t, 1.0, math.NaN()) })
	require.NotNil(t, f)
	assert.Equal(t, "NaN", f.Actual)

	f, _ = check(func(t *T) { ExpectEqual(t, math.NaN(), math.NaN()) })
	assert.NotNil(t, f)

	f, _ = check(func(t *T) { ExpectEqual(t, 0.0, math.Inf(1)) })
	assert.NotNil(t, f)
}

func TestExpectEqualNamedFloat(t *testing.T) {
	f, _ := check(func(t *T) { ExpectEqual(t, volts(5), volts(4.95)) })
	assert.Nil(t, f)
}

func TestExpectEqualExact(t *testing.T) {
	f, _ := check(func(t *T) { ExpectEqual(t, "abc", "abc") })
	assert.Nil(t, f)

	f, _ = check(func(t *T) { ExpectEqual(t, "abc", "abd", "reading %s", "name") })
	require.NotNil(t, f)
	assert.Equal(t, "abc", f.Expected)
	assert.Equal(t, "abd", f.Actual)
	assert.Equal(t, "reading name", f.Message)

	f, _ = check(func(t *T) { ExpectEqual(t, 1, 2) })
	assert.NotNil(t, f)
}

func TestExpectTrueFalseHalt(t *testing.T) {
	after := false
	f, reached := check(func(t *T) {
		ExpectTrue(t, false)
		after = true
	})
	require.NotNil(t, f)
	assert.False(t, reached)
	assert.False(t, after, "nothing after a failed expectation may run")

	f, reached = check(func(t *T) {
		ExpectFalse(t, true)
		after = true
	})
	require.NotNil(t, f)
	assert.False(t, reached)
	assert.False(t, after)

	f, reached = check(func(t *T) {
		ExpectTrue(t, true)
		ExpectFalse(t, false)
	})
	assert.Nil(t, f)
	assert.True(t, reached)
}

func TestRequire(t *testing.T) {
	f, _ := check(func(t *T) { Require(t, errors.New("link down")) })
	require.NotNil(t, f)
	assert.Equal(t, "no error", f.Expected)
	assert.Equal(t, "link down", f.Actual)

	f, _ = check(func(t *T) { Require(t, nil) })
	assert.Nil(t, f)
}

func TestFailureLocation(t *testing.T) {
	f, _ := check(func(t *T) { ExpectTrue(t, false) })
	require.NotNil(t, f)
	assert.Contains(t, f.Location, "expect_test.go:")
	assert.Equal(t, "Check", f.Group)
	assert.Contains(t, f.Error(), "[Check] expect_test.go:")
}

func TestLogf(t *testing.T) {
	var buf bytes.Buffer
	tt := newT("Digital Outputs", &buf)
	tt.Logf("writing word 0x%04X", 0xA55A)
	assert.Equal(t, "[Digital Outputs]: writing word 0xA55A\n", buf.String())

	ExpectTrue(tt, true)
	ExpectEqual(tt, 1, 1)
	assert.Equal(t, 2, tt.Checks())
}
