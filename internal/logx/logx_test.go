package logx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLevelControlsWhatIsEnabled(t *testing.T) {
	defer SetLevel("info")

	SetLevel("warn")
	assert.True(t, enabled(Error))
	assert.True(t, enabled(Warn))
	assert.False(t, enabled(Info))
	assert.False(t, enabled(Debug))

	SetLevel("trace")
	assert.True(t, enabled(Trace))
}

func TestSetLevelIgnoresUnknownNames(t *testing.T) {
	defer SetLevel("info")

	SetLevel("warn")
	SetLevel("not-a-real-level")
	assert.True(t, enabled(Warn))
	assert.False(t, enabled(Info))
}

func TestLoggerCSkipsClosureWhenDisabled(t *testing.T) {
	defer SetLevel("info")
	SetLevel("info")

	called := false
	D.C(func() string {
		called = true
		return "should not run"
	})
	assert.False(t, called, "debug closure must not run when debug is disabled")

	SetLevel("debug")
	D.C(func() string {
		called = true
		return "debug message"
	})
	assert.True(t, called)
}
