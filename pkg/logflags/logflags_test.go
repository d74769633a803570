package logflags

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func resetFlags() {
	debugger = false
	proc = false
	symbols = false
}

func TestSetup(t *testing.T) {
	defer resetFlags()

	err := Setup(true, "proc,symbols")
	require.NoError(t, err)
	require.False(t, Debugger())
	require.True(t, Proc())
	require.True(t, Symbols())
}

func TestSetupDefaultComponent(t *testing.T) {
	defer resetFlags()

	err := Setup(true, "")
	require.NoError(t, err)
	require.True(t, Debugger())
}

func TestSetupLogOutputWithoutLog(t *testing.T) {
	defer resetFlags()

	err := Setup(false, "proc")
	require.Error(t, err)
	require.False(t, Proc())
}

func TestDisabledLoggerLevel(t *testing.T) {
	defer resetFlags()

	logger := ProcLogger()
	require.Equal(t, logrus.PanicLevel, logger.Logger.Level)

	proc = true
	logger = ProcLogger()
	require.Equal(t, logrus.DebugLevel, logger.Logger.Level)
}
