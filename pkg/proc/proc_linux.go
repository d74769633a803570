package proc

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	sys "golang.org/x/sys/unix"

	"github.com/tracekit/tdb/pkg/logflags"
)

// UnexpectedWaitStatusError is returned when waiting on the traced process
// produced a status outside the known stopped/exited/terminated shapes.
type UnexpectedWaitStatusError struct {
	Status sys.WaitStatus
}

func (err UnexpectedWaitStatusError) Error() string {
	return fmt.Sprintf("unexpected wait status %#x", uint32(err.Status))
}

// Launch creates and begins tracing a new process. First entry in cmd is
// the program to run, and the rest are the arguments to be supplied to
// that process.
//
// The child requests tracing of itself before the program image starts
// executing, so the kernel delivers a trap as soon as the exec completes.
// Launch blocks for that first stop and succeeds only if it is the
// expected SIGTRAP: on success the returned process is parked at the
// program's entry point, safe to resume.
func Launch(cmd []string) (*Process, error) {
	if len(cmd) == 0 {
		return nil, fmt.Errorf("no executable specified")
	}

	process := exec.Command(cmd[0])
	process.Args = cmd
	process.Stdin = os.Stdin
	process.Stdout = os.Stdout
	process.Stderr = os.Stderr
	process.SysProcAttr = &syscall.SysProcAttr{
		Ptrace:  true,
		Setpgid: true,
	}

	dbp := newProcess()
	var err error
	dbp.execPtraceFunc(func() {
		err = process.Start()
	})
	if err != nil {
		dbp.postExit()
		return nil, err
	}
	dbp.pid = process.Process.Pid
	dbp.cmd = process
	logflags.ProcLogger().Debugf("launched %v (pid %d)", cmd, dbp.pid)

	ev, err := dbp.wait()
	if err != nil {
		dbp.stopAndReap()
		return nil, fmt.Errorf("waiting for target execve failed: %s", err)
	}
	if ev.Kind != EventStopped || ev.Signal != sys.SIGTRAP {
		if !ev.Terminal() {
			dbp.stopAndReap()
		}
		return nil, fmt.Errorf("unexpected initial stop of pid %d: %v", dbp.pid, ev)
	}
	return dbp, nil
}

// Resume instructs the traced process to continue executing and blocks
// until it changes state again.
func (dbp *Process) Resume() (Event, error) {
	if valid, err := dbp.Valid(); err != nil {
		return Event{}, err
	} else if !valid {
		return Event{}, ErrProcessExited{Pid: dbp.pid, Status: dbp.exitStatus}
	}

	var err error
	dbp.execPtraceFunc(func() {
		err = sys.PtraceCont(dbp.pid, 0)
	})
	if err != nil {
		return Event{}, fmt.Errorf("could not continue pid %d: %v", dbp.pid, err)
	}
	logflags.ProcLogger().Debugf("continued pid %d", dbp.pid)
	return dbp.wait()
}

// Kill terminates the traced process and blocks for the confirming
// terminal event. It never produces a stop event.
func (dbp *Process) Kill() (Event, error) {
	if valid, err := dbp.Valid(); err != nil {
		return Event{}, err
	} else if !valid {
		return Event{}, ErrProcessExited{Pid: dbp.pid, Status: dbp.exitStatus}
	}

	fmt.Printf("Killing process %d\n", dbp.pid)
	if err := sys.Kill(dbp.pid, sys.SIGKILL); err != nil {
		return Event{}, fmt.Errorf("could not deliver signal: %v", err)
	}
	for {
		// The process is trace-stopped; kick it so the pending SIGKILL
		// is acted upon.
		dbp.execPtraceFunc(func() {
			sys.PtraceCont(dbp.pid, int(sys.SIGKILL))
		})
		ev, err := dbp.wait()
		if err != nil {
			return Event{}, err
		}
		if ev.Terminal() {
			return ev, nil
		}
	}
}

// Valid returns whether the process can still be operated on, without
// blocking. A false result means a terminal event has already been
// observed for it.
func (dbp *Process) Valid() (bool, error) {
	if dbp.exited {
		return false, nil
	}
	var status sys.WaitStatus
	wpid, err := sys.Wait4(dbp.pid, &status, sys.WNOHANG, nil)
	if err != nil {
		return false, fmt.Errorf("liveness check of pid %d failed: %v", dbp.pid, err)
	}
	if wpid == 0 {
		return true, nil
	}
	ev, err := decodeStatus(status)
	if err != nil {
		return false, err
	}
	if ev.Terminal() {
		dbp.recordExit(ev)
		return false, nil
	}
	return true, nil
}

// Registers retrieves the saved register state of the traced process.
// Only valid while the process is stopped.
func (dbp *Process) Registers() (Registers, error) {
	if dbp.exited {
		return nil, ErrProcessExited{Pid: dbp.pid, Status: dbp.exitStatus}
	}
	var (
		regs Registers
		err  error
	)
	dbp.execPtraceFunc(func() {
		regs, err = registers(dbp.pid)
	})
	if err != nil {
		return nil, fmt.Errorf("could not read registers of pid %d: %v", dbp.pid, err)
	}
	return regs, nil
}

// ReadMemoryWord reads one machine word at addr from the traced process's
// address space. Only valid while the process is stopped.
func (dbp *Process) ReadMemoryWord(addr uint64) (uint64, error) {
	if dbp.exited {
		return 0, ErrProcessExited{Pid: dbp.pid, Status: dbp.exitStatus}
	}
	var (
		word uintptr
		err  error
	)
	dbp.execPtraceFunc(func() {
		word, err = ptracePeek(dbp.pid, uintptr(addr))
	})
	if err != nil {
		return 0, fmt.Errorf("could not read memory at %#x: %v", addr, err)
	}
	return uint64(word), nil
}

// wait blocks until the traced process changes state and decodes the
// result. Terminal events retire the process handle.
func (dbp *Process) wait() (Event, error) {
	var status sys.WaitStatus
	_, err := sys.Wait4(dbp.pid, &status, 0, nil)
	if err != nil {
		return Event{}, err
	}
	ev, err := decodeStatus(status)
	if err != nil {
		return ev, err
	}
	if ev.Kind == EventStopped {
		regs, err := dbp.Registers()
		if err != nil {
			return ev, err
		}
		ev.PC = regs.PC()
	}
	if ev.Terminal() {
		dbp.recordExit(ev)
	}
	logflags.ProcLogger().Debugf("wait on pid %d: %+v", dbp.pid, ev)
	return ev, nil
}

func (dbp *Process) recordExit(ev Event) {
	dbp.exitStatus = ev.Status
	dbp.postExit()
}

// stopAndReap is the cleanup path for a launch that went wrong: it makes
// sure the child does not outlive the error.
func (dbp *Process) stopAndReap() {
	sys.Kill(dbp.pid, sys.SIGKILL)
	var status sys.WaitStatus
	sys.Wait4(dbp.pid, &status, 0, nil)
	if !dbp.exited {
		dbp.postExit()
	}
}

// decodeStatus classifies a raw wait status into a lifecycle event. The
// program counter of stop events is filled in by the caller. Statuses
// outside the three known shapes produce an UnexpectedWaitStatusError.
func decodeStatus(status sys.WaitStatus) (Event, error) {
	switch {
	case status.Exited():
		return Event{Kind: EventExited, Status: status.ExitStatus()}, nil
	case status.Signaled():
		return Event{Kind: EventTerminated, Signal: status.Signal()}, nil
	case status.Stopped():
		return Event{Kind: EventStopped, Signal: status.StopSignal()}, nil
	}
	return Event{}, UnexpectedWaitStatusError{Status: status}
}
