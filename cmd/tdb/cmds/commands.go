// Package cmds implements the command-line interface of tdb.
package cmds

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tracekit/tdb/pkg/config"
	"github.com/tracekit/tdb/pkg/logflags"
	"github.com/tracekit/tdb/pkg/symbols"
	"github.com/tracekit/tdb/pkg/terminal"
	"github.com/tracekit/tdb/pkg/version"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string

	conf *config.Config
)

const tdbCommandLongDesc = `tdb is an interactive debugger for natively compiled programs.

It launches the target executable as a traced child process, lets you
control its execution and reconstructs the call stack of the stopped process from
its frame-pointer chain, using the debug information embedded in the
binary to map addresses back to functions and source lines.`

// New returns an initialized command tree.
func New() *cobra.Command {
	conf = config.LoadConfig()

	rootCommand := &cobra.Command{
		Use:   "tdb",
		Short: "tdb is a debugger for natively compiled programs.",
		Long:  tdbCommandLongDesc,
	}
	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable debugger logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", "Comma separated list of components that should produce debug output (debugger, proc, symbols).")

	execCommand := &cobra.Command{
		Use:   "exec <path/to/binary>",
		Short: "Execute a precompiled binary, and begin a debug session.",
		Long: `Execute a precompiled binary and begin a debug session.

The binary must carry debug information: tdb refuses to start when it
cannot load the symbol database, since no address could ever be resolved.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("you must provide a path to a binary")
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(execute(args[0], conf))
		},
	}
	rootCommand.AddCommand(execCommand)

	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tdb debugger\n%s\n%s\n", version.TdbVersion, version.BuildInfo())
		},
	}
	rootCommand.AddCommand(versionCommand)

	return rootCommand
}

func execute(targetPath string, conf *config.Config) int {
	if err := logflags.Setup(log, logOutput); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	dbi, err := symbols.Load(targetPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	term := terminal.New(targetPath, dbi, conf)
	status, err := term.Run()
	if err != nil {
		fmt.Println(err)
	}
	return status
}
