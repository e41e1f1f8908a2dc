package command

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/minikv/internal/cli/repl"
	"github.com/yndnr/minikv/pkg/client"
)

// GetResult is the outcome of a GET.
type GetResult struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
	Found bool   `json:"found" yaml:"found"`
}

// String renders the result the way redis-cli does.
func (r GetResult) String() string {
	if !r.Found {
		return "(nil)"
	}
	return strconv.Quote(r.Value)
}

// StatusResult is a status-line reply such as OK.
type StatusResult struct {
	Status string `json:"status" yaml:"status"`
}

func (r StatusResult) String() string {
	return r.Status
}

// GetCommand returns the get command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Get the value of a key",
		ArgsUsage: "<key>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("get requires exactly 1 argument: <key>")
			}
			return runOnce(c, "get", c.Args().Get(0))
		},
	}
}

// SetCommand returns the set command.
func SetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Set the value of a key",
		ArgsUsage: "<key> <value>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("set requires exactly 2 arguments: <key> <value>")
			}
			return runOnce(c, "set", c.Args().Get(0), c.Args().Get(1))
		},
	}
}

// PingCommand returns the ping command.
func PingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "Send PING to the server",
		Action: func(c *cli.Context) error {
			if c.NArg() != 0 {
				return fmt.Errorf("ping takes no arguments")
			}
			return runOnce(c, "ping")
		},
	}
}

func runOnce(c *cli.Context, args ...string) error {
	s, err := connect(c)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Executor(c.App.Writer)(c.Context, args)
}

// Executor returns a repl.Executor that runs one command and writes its
// formatted result to w.
func (s *session) Executor(w io.Writer) repl.Executor {
	return func(ctx context.Context, args []string) error {
		ctx, cancel := s.requestContext(ctx)
		defer cancel()

		result, err := s.run(ctx, args)
		if err != nil {
			return err
		}
		return s.format.Format(w, result)
	}
}

func (s *session) run(ctx context.Context, args []string) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	switch strings.ToLower(args[0]) {
	case "get":
		if len(args) != 2 {
			return nil, fmt.Errorf("usage: get <key>")
		}
		v, ok, err := s.client.Get(ctx, args[1])
		if err != nil {
			return nil, err
		}
		return GetResult{Key: args[1], Value: string(v), Found: ok}, nil

	case "set":
		if len(args) != 3 {
			return nil, fmt.Errorf("usage: set <key> <value>")
		}
		if err := s.client.Set(ctx, args[1], []byte(args[2])); err != nil {
			return nil, err
		}
		return StatusResult{Status: "OK"}, nil

	case "ping":
		reply, err := s.client.Ping(ctx)
		if client.IsUnimplemented(err) {
			// The server answered, it just does not implement PING.
			return StatusResult{Status: "reachable (PING unimplemented)"}, nil
		}
		if err != nil {
			return nil, err
		}
		return StatusResult{Status: reply}, nil

	default:
		return nil, fmt.Errorf("unknown command %q", args[0])
	}
}
