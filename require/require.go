package require

import (
	"bytes"
	"errors"
	"reflect"

	"github.com/alecthomas/assert"
	"github.com/davecgh/go-spew/spew"
)

// subset of github.com/stretchr/testify/require on top of
// github.com/alecthomas/assert (which has much nicer diffs)
// with only the functions used in tests.
// assert functions stop the test on failure themselves.

// TestingT is an interface wrapper around *testing.T
type TestingT interface {
	Errorf(format string, args ...interface{})
	FailNow()
}

// Len asserts that the specified object has specific length.
//
//	require.Len(t, movies, 3)
func Len(t TestingT, object interface{}, length int, msgAndArgs ...interface{}) {
	assert.Len(t, object, length, msgAndArgs...)
}

// NoError asserts that a function returned no error (i.e. `nil`).
func NoError(t TestingT, err error, msgAndArgs ...interface{}) {
	assert.NoError(t, err, msgAndArgs...)
}

// Error asserts that a function returned an error
func Error(t TestingT, err error, msgAndArgs ...interface{}) {
	assert.Error(t, err, msgAndArgs...)
}

// ErrorIs asserts that errors.Is(err, target) is true
func ErrorIs(t TestingT, err error, target error, msgAndArgs ...interface{}) {
	if errors.Is(err, target) {
		return
	}
	t.Errorf("expected error matching '%v', got '%v'", target, err)
	if len(msgAndArgs) > 0 {
		t.Errorf("%s", spew.Sprint(msgAndArgs...))
	}
	t.FailNow()
}

func objectsAreEqual(expected, actual interface{}) bool {
	exp, ok := expected.([]byte)
	if !ok {
		return reflect.DeepEqual(expected, actual)
	}
	act, ok := actual.([]byte)
	return ok && bytes.Equal(exp, act)
}

// Equal asserts that two objects are equal.
// On failure also dumps both values, which helps with structs.
//
//	require.Equal(t, expected, got)
func Equal(t TestingT, expected interface{}, actual interface{}, msgAndArgs ...interface{}) {
	if !objectsAreEqual(expected, actual) {
		t.Errorf("expected:\n%s\nactual:\n%s", spew.Sdump(expected), spew.Sdump(actual))
	}
	assert.Equal(t, expected, actual, msgAndArgs...)
}

// NotEqual asserts that the specified values are NOT equal.
func NotEqual(t TestingT, expected interface{}, actual interface{}, msgAndArgs ...interface{}) {
	assert.NotEqual(t, expected, actual, msgAndArgs...)
}

// True asserts that the specified value is true.
func True(t TestingT, value bool, msgAndArgs ...interface{}) {
	assert.True(t, value, msgAndArgs...)
}

// False asserts that the specified value is false.
func False(t TestingT, value bool, msgAndArgs ...interface{}) {
	assert.False(t, value, msgAndArgs...)
}

// Contains asserts that s contains the substring or element.
//
//	require.Contains(t, out, "Jaws")
func Contains(t TestingT, s interface{}, contains interface{}, msgAndArgs ...interface{}) {
	assert.Contains(t, s, contains, msgAndArgs...)
}
