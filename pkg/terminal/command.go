// Package terminal implements functions for responding to user
// input and dispatching to the appropriate debugger commands.
package terminal

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/cosiner/argv"
	"github.com/derekparker/trie"

	"github.com/tracekit/tdb/pkg/proc"
)

// entryPointFunction is the function name that terminates a backtrace:
// once the walker resolves a frame to it the whole call chain has been
// recovered.
const entryPointFunction = "main"

type cmdfunc func(t *Term, args string) error

type command struct {
	aliases        []string
	builtinAliases []string
	helpMsg        string
	cmdFn          cmdfunc
}

// Returns true if the command string matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands represents the commands for the tdb terminal process.
type Commands struct {
	cmds        []command
	completions *trie.Trie
}

// ExitRequestError is returned when the user exits tdb.
type ExitRequestError struct{}

func (ExitRequestError) Error() string {
	return "exit"
}

// DebugCommands returns a Commands struct with default commands defined.
func DebugCommands() *Commands {
	c := &Commands{}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{aliases: []string{"run", "r"}, cmdFn: runCmd, helpMsg: `Run the target program.

	run [args...]

Starts the target under trace and resumes it once. If a process is already
being debugged it is killed first.`},
		{aliases: []string{"continue", "c"}, cmdFn: cont, helpMsg: `Run until the process stops or exits.`},
		{aliases: []string{"backtrace", "bt"}, cmdFn: backtraceCmd, helpMsg: `Print the call stack of the stopped process.

The stack is reconstructed by following the saved frame-pointer chain, top
frame first, down to the program's entry function. If the chain cannot be
followed all the way the frames recovered so far are still printed.`},
		{aliases: []string{"regs"}, cmdFn: regsCmd, helpMsg: `Print the saved registers of the stopped process.`},
		{aliases: []string{"quit", "q", "exit"}, cmdFn: quitCmd, helpMsg: `Exit the debugger, killing any process still being traced.`},
	}

	c.rebuildCompletions()
	return c
}

// Merge takes aliases defined in the config struct and merges them with the default aliases.
func (c *Commands) Merge(allAliases map[string][]string) {
	for i := range c.cmds {
		if c.cmds[i].builtinAliases != nil {
			c.cmds[i].aliases = append(c.cmds[i].aliases[:0], c.cmds[i].builtinAliases...)
		}
	}
	for i := range c.cmds {
		if aliases, ok := allAliases[c.cmds[i].aliases[0]]; ok {
			if c.cmds[i].builtinAliases == nil {
				c.cmds[i].builtinAliases = make([]string, len(c.cmds[i].aliases))
				copy(c.cmds[i].builtinAliases, c.cmds[i].aliases)
			}
			c.cmds[i].aliases = append(c.cmds[i].aliases, aliases...)
		}
	}
	c.rebuildCompletions()
}

func (c *Commands) rebuildCompletions() {
	c.completions = trie.New()
	for _, cmd := range c.cmds {
		for _, alias := range cmd.aliases {
			c.completions.Add(alias, nil)
		}
	}
}

// Complete returns the command aliases that start with prefix.
func (c *Commands) Complete(prefix string) []string {
	if prefix == "" {
		return nil
	}
	return c.completions.PrefixSearch(prefix)
}

var errNoCmdAvailable = errors.New("command not available")

// errNoProcess rejects lifecycle commands issued while no process is
// being traced, before any OS call is attempted.
var errNoProcess = errors.New("no running process")

// Find will look up the command function for the given command input.
// If it cannot find the command it will default to noCmdAvailable().
func (c *Commands) Find(cmdstr string) cmdfunc {
	if cmdstr == "" {
		return nullCommand
	}

	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v.cmdFn
		}
	}

	return noCmdAvailable
}

// Call takes a command to execute.
func (c *Commands) Call(cmdstr string, t *Term) error {
	vals := strings.SplitN(strings.TrimSpace(cmdstr), " ", 2)
	cmdname := vals[0]
	var args string
	if len(vals) > 1 {
		args = strings.TrimSpace(vals[1])
	}
	return c.Find(cmdname)(t, args)
}

func noCmdAvailable(t *Term, args string) error {
	return errNoCmdAvailable
}

func nullCommand(t *Term, args string) error {
	return nil
}

func (c *Commands) help(t *Term, args string) error {
	if args != "" {
		for _, cmd := range c.cmds {
			for _, alias := range cmd.aliases {
				if alias == args {
					fmt.Println(cmd.helpMsg)
					return nil
				}
			}
		}
		return errNoCmdAvailable
	}

	fmt.Println("The following commands are available:")
	w := new(tabwriter.Writer)
	w.Init(os.Stdout, 0, 8, 0, '-', 0)
	for _, cmd := range c.cmds {
		h := cmd.helpMsg
		if idx := strings.Index(h, "\n"); idx >= 0 {
			h = h[:idx]
		}
		if len(cmd.aliases) > 1 {
			fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
		} else {
			fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Println("Type help followed by a command for full documentation.")
	return nil
}

// parseRunArgs tokenizes the argument list given to the run command,
// honoring shell-style quoting.
func parseRunArgs(args string) ([]string, error) {
	if args == "" {
		return nil, nil
	}
	v, err := argv.Argv(args, nil, nil)
	if err != nil {
		return nil, err
	}
	if len(v) != 1 {
		return nil, fmt.Errorf("illegal command line %q", args)
	}
	return v[0], nil
}

func runCmd(t *Term, args string) error {
	targetArgs, err := parseRunArgs(args)
	if err != nil {
		return err
	}

	if t.dbp != nil {
		ev, err := t.dbp.Kill()
		switch err.(type) {
		case nil:
			t.handleEvent(ev)
		case proc.ErrProcessExited:
			// Already gone, nothing to kill.
			t.dbp = nil
		default:
			return err
		}
	}

	dbp, err := t.launch(append([]string{t.targetPath}, targetArgs...))
	if err != nil {
		return fmt.Errorf("could not launch %s: %v", t.targetPath, err)
	}
	t.dbp = dbp
	return cont(t, "")
}

func cont(t *Term, args string) error {
	if t.dbp == nil {
		return errNoProcess
	}
	ev, err := t.dbp.Resume()
	if err != nil {
		// The process can exit on its own between the liveness probe and
		// the resume proper. Retire the slot so later commands report that
		// no process is running instead of repeating the stale error.
		if _, ok := err.(proc.ErrProcessExited); ok {
			t.dbp = nil
		}
		return err
	}
	t.handleEvent(ev)
	return nil
}

func backtraceCmd(t *Term, args string) error {
	if t.dbp == nil {
		return errNoProcess
	}
	regs, err := t.dbp.Registers()
	if err != nil {
		return err
	}
	frames, err := proc.Stacktrace(regs, t.dbp, t.resolver, entryPointFunction, t.conf.MaxBacktraceDepth)
	for _, frame := range frames {
		fmt.Fprintf(t.stdout, "%s (%s:%d)\n", frame.Fn, frame.File, frame.Line)
	}
	return err
}

func regsCmd(t *Term, args string) error {
	if t.dbp == nil {
		return errNoProcess
	}
	regs, err := t.dbp.Registers()
	if err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "pc = %#x\nsp = %#x\nbp = %#x\n", regs.PC(), regs.SP(), regs.BP())
	return nil
}

func quitCmd(t *Term, args string) error {
	return ExitRequestError{}
}
