package proc

import (
	"testing"

	"github.com/stretchr/testify/require"
	sys "golang.org/x/sys/unix"
)

func TestDecodeStatus(t *testing.T) {
	ev, err := decodeStatus(sys.WaitStatus(3 << 8))
	require.NoError(t, err)
	require.Equal(t, Event{Kind: EventExited, Status: 3}, ev)

	ev, err = decodeStatus(sys.WaitStatus(uint32(sys.SIGKILL)))
	require.NoError(t, err)
	require.Equal(t, Event{Kind: EventTerminated, Signal: sys.SIGKILL}, ev)

	ev, err = decodeStatus(sys.WaitStatus(uint32(sys.SIGTRAP)<<8 | 0x7f))
	require.NoError(t, err)
	require.Equal(t, Event{Kind: EventStopped, Signal: sys.SIGTRAP}, ev)
}

func TestDecodeStatusUnexpected(t *testing.T) {
	// The "continued" shape is never produced by the controller since it
	// does not use WCONTINUED.
	_, err := decodeStatus(sys.WaitStatus(0xffff))
	require.Error(t, err)
	require.IsType(t, UnexpectedWaitStatusError{}, err)
}

func TestLaunchStopsAtEntry(t *testing.T) {
	dbp, err := Launch([]string{"/bin/true"})
	require.NoError(t, err)
	defer dbp.stopAndReap()

	// Repeated liveness probes must not change the observable phase.
	for i := 0; i < 3; i++ {
		valid, err := dbp.Valid()
		require.NoError(t, err)
		require.True(t, valid)
	}

	regs, err := dbp.Registers()
	require.NoError(t, err)
	require.NotZero(t, regs.PC())

	// The stack of a freshly stopped process must be readable.
	_, err = dbp.ReadMemoryWord(regs.SP())
	require.NoError(t, err)
}

func TestResumeUntilExit(t *testing.T) {
	dbp, err := Launch([]string{"/bin/true"})
	require.NoError(t, err)

	ev, err := dbp.Resume()
	require.NoError(t, err)
	require.Equal(t, EventExited, ev.Kind)
	require.Equal(t, 0, ev.Status)

	valid, err := dbp.Valid()
	require.NoError(t, err)
	require.False(t, valid)

	_, err = dbp.Resume()
	require.Error(t, err)
	require.IsType(t, ErrProcessExited{}, err)

	_, err = dbp.Registers()
	require.Error(t, err)
}

func TestKillStoppedProcess(t *testing.T) {
	dbp, err := Launch([]string{"/bin/sleep", "60"})
	require.NoError(t, err)

	ev, err := dbp.Kill()
	require.NoError(t, err)
	require.Equal(t, EventTerminated, ev.Kind)
	require.Equal(t, sys.SIGKILL, ev.Signal)

	valid, err := dbp.Valid()
	require.NoError(t, err)
	require.False(t, valid)

	_, err = dbp.ReadMemoryWord(0)
	require.Error(t, err)
}

func TestLaunchMissingExecutable(t *testing.T) {
	_, err := Launch([]string{"/does/not/exist"})
	require.Error(t, err)
}
