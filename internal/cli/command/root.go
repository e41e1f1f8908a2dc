package command

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/minikv/internal/cli/output"
	"github.com/yndnr/minikv/internal/cli/repl"
	"github.com/yndnr/minikv/internal/infra/buildinfo"
	"github.com/yndnr/minikv/pkg/client"
)

// DefaultServer is the address used when --server is not set.
const DefaultServer = "127.0.0.1:6379"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "minikv-cli",
		Usage:   "minikv command-line client",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			GetCommand(),
			SetCommand(),
			PingCommand(),
		},
		Action: interactive,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "minikv server address (host:port or unix:/path)",
			EnvVars: []string{"MINIKV_SERVER"},
			Value:   DefaultServer,
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Aliases: []string{"t"},
			Usage:   "Per-request timeout",
			Value:   client.DefaultTimeout,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: raw, json, yaml",
			Value:   string(output.FormatRaw),
		},
		&cli.StringFlag{
			Name:  "history-file",
			Usage: "Interactive history file (empty keeps history in memory)",
			Value: repl.DefaultHistoryFile(),
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Server      string
	Timeout     time.Duration
	Output      output.Format
	HistoryFile string
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) (*GlobalFlags, error) {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return nil, err
	}
	return &GlobalFlags{
		Server:      c.String("server"),
		Timeout:     c.Duration("timeout"),
		Output:      format,
		HistoryFile: c.String("history-file"),
	}, nil
}

// session is one connected invocation.
type session struct {
	flags  *GlobalFlags
	client *client.Client
	format output.Formatter
}

// connect parses the global flags and dials the server.
func connect(c *cli.Context) (*session, error) {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return nil, err
	}

	cl, err := client.Dial(c.Context, flags.Server, client.WithTimeout(flags.Timeout))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return &session{
		flags:  flags,
		client: cl,
		format: output.NewFormatter(flags.Output),
	}, nil
}

// Close closes the underlying connection.
func (s *session) Close() error {
	return s.client.Close()
}

func (s *session) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.flags.Timeout)
}

// interactive runs the REPL when no subcommand was given.
func interactive(c *cli.Context) error {
	if c.NArg() > 0 {
		return fmt.Errorf("unknown command %q", c.Args().First())
	}

	s, err := connect(c)
	if err != nil {
		return err
	}
	defer s.Close()

	w := c.App.Writer
	fmt.Fprintf(w, "connected to %s, type help for commands\n", s.flags.Server)

	r := repl.New(
		c.App.Reader,
		w,
		s.flags.Server+"> ",
		s.Executor(w),
		repl.NewCompleter("get", "set", "ping"),
		repl.NewHistory(s.flags.HistoryFile),
	)
	return r.Run(c.Context)
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
