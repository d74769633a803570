// Package proc implements control over a process being traced and the
// reconstruction of its call stack. It is the only package that talks to
// the OS tracing facility: the rest of the debugger goes through the
// exported operations on Process.
package proc

import (
	"fmt"
	"os/exec"
	"runtime"
	"syscall"
)

// EventKind tags a lifecycle Event.
type EventKind int

const (
	// EventStopped indicates the process stopped under trace. It is the
	// only non-terminal event: the process remains valid and further
	// operations may target it.
	EventStopped EventKind = iota
	// EventExited indicates the process exited normally.
	EventExited
	// EventTerminated indicates the process was killed by a signal.
	EventTerminated
)

// Event is the decoded result of waiting on the traced process.
type Event struct {
	Kind EventKind
	// Signal that stopped or killed the process. Valid for EventStopped
	// and EventTerminated.
	Signal syscall.Signal
	// Status is the exit code. Valid for EventExited.
	Status int
	// PC is the instruction pointer at the stop. Valid for EventStopped.
	PC uint64
}

// Terminal returns true if no further operations are valid on the
// process that produced this event.
func (ev Event) Terminal() bool {
	return ev.Kind == EventExited || ev.Kind == EventTerminated
}

func (ev Event) String() string {
	switch ev.Kind {
	case EventStopped:
		return fmt.Sprintf("stopped by signal %d at %#x", ev.Signal, ev.PC)
	case EventExited:
		return fmt.Sprintf("exited with status %d", ev.Status)
	case EventTerminated:
		return fmt.Sprintf("terminated by signal %d", ev.Signal)
	}
	return fmt.Sprintf("unknown event kind %d", ev.Kind)
}

// Process represents a process being traced by the debugger.
type Process struct {
	pid int
	cmd *exec.Cmd

	ptraceChan     chan func()
	ptraceDoneChan chan interface{}

	exited     bool
	exitStatus int
}

// ErrProcessExited indicates that the process has exited and contains both
// process id and exit status.
type ErrProcessExited struct {
	Pid    int
	Status int
}

func (err ErrProcessExited) Error() string {
	return fmt.Sprintf("Process %d has exited with status %d", err.Pid, err.Status)
}

func newProcess() *Process {
	dbp := &Process{
		ptraceChan:     make(chan func()),
		ptraceDoneChan: make(chan interface{}),
	}
	go dbp.handlePtraceFuncs()
	return dbp
}

// Pid returns the process ID.
func (dbp *Process) Pid() int {
	return dbp.pid
}

func (dbp *Process) handlePtraceFuncs() {
	// We must ensure here that we are running on the same thread during
	// the execution of dbg. This is due to the fact that ptrace(2) expects
	// all commands after PTRACE_ATTACH to come from the same thread.
	runtime.LockOSThread()

	for fn := range dbp.ptraceChan {
		fn()
		dbp.ptraceDoneChan <- nil
	}
}

func (dbp *Process) execPtraceFunc(fn func()) {
	dbp.ptraceChan <- fn
	<-dbp.ptraceDoneChan
}

func (dbp *Process) postExit() {
	dbp.exited = true
	close(dbp.ptraceChan)
	close(dbp.ptraceDoneChan)
}
