package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fuliji/spiderctl/internal/config"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command and wires every subcommand to a shared
// command handler.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	cmdHandler := command{flags: globalFlags}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createStartCommand(cmdHandler),
		createStopCommand(cmdHandler),
		createRestartCommand(cmdHandler),
		createStatusCommand(cmdHandler),
		createLogsCommand(cmdHandler),
		createListCommand(cmdHandler),
		createStartAllCommand(cmdHandler),
		createStopAllCommand(cmdHandler),
		createCleanCommand(cmdHandler),
		createServeCommand(cmdHandler),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "spiderctl",
		Short: "Crawler worker supervision tool",
		Long: `Spiderctl starts, stops and monitors the crawler workers and the
dashboard of a scraping project. It must run from the project root: the
spiderctl.toml file next to the worker code marks the root and anchors the
pid and log directories.

Examples:
  spiderctl start chigua
  spiderctl status
  spiderctl logs chigua -n 100
  spiderctl serve --listen 0.0.0.0:8571`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", config.DefaultFile, "path to the project config file")
	return root
}

func createStartCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "start <name>",
		Short: "Start a worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Start(args[0])
		},
	}
}

func createStopCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <name>",
		Short: "Stop a running worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Stop(args[0])
		},
	}
}

func createRestartCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "restart <name>",
		Short: "Restart a worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Restart(args[0])
		},
	}
}

func createStatusCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "status [name]",
		Short: "Show worker status",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return c.Status(name)
		},
	}
}

func createLogsCommand(c command) *cobra.Command {
	logsFlags := &LogsFlags{}
	cmd := &cobra.Command{
		Use:   "logs <name>",
		Short: "Show the tail of a worker's newest log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Logs(args[0], *logsFlags)
		},
	}
	cmd.Flags().IntVarP(&logsFlags.Lines, "lines", "n", 50, "number of lines to show")
	return cmd
}

func createListCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the registered workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.List()
		},
	}
}

func createStartAllCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "start-all",
		Short: "Start every registered worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.StartAll()
		},
	}
}

func createStopAllCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "stop-all",
		Short: "Stop every running worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.StopAll()
		},
	}
}

func createCleanCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove old logs and stale pid records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Clean()
		},
	}
}

func createServeCommand(c command) *cobra.Command {
	serveFlags := &ServeFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the monitoring HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Serve(*serveFlags)
		},
	}
	cmd.Flags().StringVar(&serveFlags.Listen, "listen", "", "listen address (default from config)")
	return cmd
}
