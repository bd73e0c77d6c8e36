package monitoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) { got = format })
	Logf("channel sweep done")
	assert.Equal(t, "channel sweep done", got)

	// nil installs a no-op that never panics.
	got = ""
	SetLogger(nil)
	Logf("dropped")
	assert.Empty(t, got)
}

func TestScoped(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) { got = format })

	deposit := Scoped("deposit")
	deposit("%d particles placed")
	assert.Equal(t, "deposit: %d particles placed", got)

	// Scoped loggers follow later SetLogger calls.
	var second string
	SetLogger(func(format string, v ...interface{}) { second = format })
	deposit("rebound")
	assert.Equal(t, "deposit: rebound", second)
}

func TestDefaultLogger(t *testing.T) {
	require.NotNil(t, Logf)
}

func TestDebugf(t *testing.T) {
	original := Logf
	defer func() {
		Logf = original
		SetDebug(false)
	}()

	var got string
	SetLogger(func(format string, v ...interface{}) { got = format })

	Debugf("suppressed")
	assert.Empty(t, got)

	SetDebug(true)
	Debugf("particle %d dropped")
	assert.Equal(t, "particle %d dropped", got)

	SetDebug(false)
	got = ""
	Debugf("suppressed again")
	assert.Empty(t, got)
}
