package terminal

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-delve/liner"
	"github.com/mattn/go-isatty"
	sys "golang.org/x/sys/unix"

	"github.com/tracekit/tdb/pkg/config"
	"github.com/tracekit/tdb/pkg/logflags"
	"github.com/tracekit/tdb/pkg/proc"
)

const historyFile string = ".tdb_history"

// target is the process-controller surface the command loop drives.
// Satisfied by *proc.Process.
type target interface {
	proc.MemoryReader
	Pid() int
	Resume() (proc.Event, error)
	Kill() (proc.Event, error)
	Valid() (bool, error)
	Registers() (proc.Registers, error)
}

// Term represents the terminal running tdb. It owns the at-most-one
// process currently being traced: starting a new run replaces the old
// occupant of the slot after killing it.
type Term struct {
	targetPath  string
	resolver    proc.SymbolResolver
	conf        *config.Config
	prompt      string
	line        *liner.State
	cmds        *Commands
	interactive bool
	stdout      io.Writer

	// dbp is the active traced process, nil when there is none.
	dbp    target
	launch func(cmd []string) (target, error)
}

// New returns a new Term set up to debug the executable at targetPath.
func New(targetPath string, resolver proc.SymbolResolver, conf *config.Config) *Term {
	cmds := DebugCommands()
	if conf != nil && conf.Aliases != nil {
		cmds.Merge(conf.Aliases)
	}
	if conf == nil {
		conf = &config.Config{MaxBacktraceDepth: config.DefaultMaxBacktraceDepth}
	}

	interactive := isatty.IsTerminal(os.Stdin.Fd()) &&
		strings.ToLower(os.Getenv("TERM")) != "dumb"

	return &Term{
		targetPath:  targetPath,
		resolver:    resolver,
		conf:        conf,
		prompt:      "(tdb) ",
		line:        liner.NewLiner(),
		cmds:        cmds,
		interactive: interactive,
		stdout:      os.Stdout,
		launch: func(cmd []string) (target, error) {
			return proc.Launch(cmd)
		},
	}
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	t.line.Close()
}

// Run begins the debug session, reading commands until the operator
// quits. The returned int is the exit status the process should use.
func (t *Term) Run() (int, error) {
	defer t.Close()

	// A ^C while the target runs must not kill the debugger: that would
	// leak the traced child. The target lives in its own process group,
	// so the signal is simply swallowed here.
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT)
	defer signal.Stop(ch)
	go t.sigintGuard(ch)

	t.line.SetCompleter(func(line string) []string {
		return t.cmds.Complete(strings.ToLower(line))
	})

	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Printf("Unable to load history file: %v.", err)
	}
	if f, err := os.Open(fullHistoryFile); err == nil {
		t.line.ReadHistory(f)
		f.Close()
	}
	if t.interactive {
		fmt.Println("Type 'help' for list of commands.")
	}

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF {
				fmt.Println("exit")
				return t.handleExit()
			}
			return 1, fmt.Errorf("prompt for input failed: %v", err)
		}

		logflags.DebuggerLogger().Debugf("command: %q", cmdstr)
		if err := t.cmds.Call(cmdstr, t); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(os.Stderr, "Command failed: %s\n", err)
		}
	}
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}

	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}

	return l, nil
}

// handleEvent renders one lifecycle event to the operator. Terminal
// events retire the active process slot: a subsequent continue or
// backtrace will report that no process is running.
func (t *Term) handleEvent(ev proc.Event) {
	switch ev.Kind {
	case proc.EventExited:
		fmt.Fprintf(t.stdout, "Process %d has exited with status %d\n", t.dbp.Pid(), ev.Status)
		t.dbp = nil
	case proc.EventTerminated:
		fmt.Fprintf(t.stdout, "Process %d terminated by signal %s\n", t.dbp.Pid(), signalName(ev.Signal))
		t.dbp = nil
	case proc.EventStopped:
		fmt.Fprintf(t.stdout, "Process %d stopped by signal %s (pc %#x)\n", t.dbp.Pid(), signalName(ev.Signal), ev.PC)
	}
}

// handleExit kills any process still being traced, so that no traced
// child outlives the debugger, and persists command history.
func (t *Term) handleExit() (int, error) {
	if t.dbp != nil {
		ev, err := t.dbp.Kill()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not kill process %d: %v\n", t.dbp.Pid(), err)
			t.dbp = nil
		} else {
			t.handleEvent(ev)
		}
	}

	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Println("Error saving history file:", err)
		return 0, nil
	}
	if f, err := os.Create(fullHistoryFile); err == nil {
		_, err = t.line.WriteHistory(f)
		if err != nil {
			fmt.Println("readline history error:", err)
		}
		f.Close()
	}
	return 0, nil
}

func (t *Term) sigintGuard(ch <-chan os.Signal) {
	for range ch {
		fmt.Fprintln(t.stdout, "Interrupt received, not forwarded. Type quit to exit.")
	}
}

func signalName(sig syscall.Signal) string {
	if name := sys.SignalName(sig); name != "" {
		return name
	}
	return fmt.Sprintf("%d", int(sig))
}
