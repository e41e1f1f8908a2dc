package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrUnbalancedQuotes is returned for a line with an open quote.
var ErrUnbalancedQuotes = errors.New("unbalanced quotes")

// Executor runs one command line split into arguments.
type Executor func(ctx context.Context, args []string) error

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	prompt    string
	exec      Executor
	completer *Completer
	history   *History
}

// New creates a REPL reading from in and writing to out.
func New(in io.Reader, out io.Writer, prompt string, exec Executor, completer *Completer, history *History) *REPL {
	if completer == nil {
		completer = NewCompleter()
	}
	if history == nil {
		history = NewHistory("")
	}
	return &REPL{
		input:     in,
		output:    out,
		prompt:    prompt,
		exec:      exec,
		completer: completer,
		history:   history,
	}
}

// Run starts the REPL loop. It returns nil on exit, quit or end of input.
// Command errors are printed and the loop continues.
func (r *REPL) Run(ctx context.Context) error {
	_ = r.history.Load()
	defer func() { _ = r.history.Save() }()

	reader := bufio.NewReader(r.input)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(r.output, r.prompt)

		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		eof := errors.Is(err, io.EOF)

		line = strings.TrimSpace(line)
		if line == "" {
			if eof {
				fmt.Fprintln(r.output)
				return nil
			}
			continue
		}

		r.history.Add(line)
		if done := r.handle(ctx, line); done || eof {
			return nil
		}
	}
}

// handle runs one line and reports whether the loop should stop.
func (r *REPL) handle(ctx context.Context, line string) bool {
	args, err := SplitArgs(line)
	if err != nil {
		fmt.Fprintf(r.output, "(error) %v\n", err)
		return false
	}

	name := strings.ToLower(args[0])
	switch name {
	case "exit", "quit":
		return true
	case "help":
		fmt.Fprintf(r.output, "commands: %s\n", strings.Join(r.completer.Commands(), ", "))
		return false
	}

	if !r.completer.Known(name) {
		msg := fmt.Sprintf("(error) unknown command %q", args[0])
		if name == "" {
			fmt.Fprintln(r.output, msg)
			return false
		}
		if s := r.completer.Complete(name[:1]); len(s) > 0 {
			msg += fmt.Sprintf(", did you mean %s?", strings.Join(s, " or "))
		}
		fmt.Fprintln(r.output, msg)
		return false
	}

	if err := r.exec(ctx, args); err != nil {
		fmt.Fprintf(r.output, "(error) %v\n", err)
	}
	return false
}

// SplitArgs splits a line on whitespace. Double or single quotes group
// words; inside double quotes \" \\ \n \r \t are unescaped.
func SplitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inArg   bool
		quote   byte
		escaped bool
	)

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case escaped:
			switch c {
			case 'n':
				cur.WriteByte('\n')
			case 'r':
				cur.WriteByte('\r')
			case 't':
				cur.WriteByte('\t')
			default:
				cur.WriteByte(c)
			}
			escaped = false
		case quote == '"' && c == '\\':
			escaped = true
		case quote != 0 && c == quote:
			quote = 0
		case quote != 0:
			cur.WriteByte(c)
		case c == '"' || c == '\'':
			quote = c
			inArg = true
		case c == ' ' || c == '\t':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteByte(c)
			inArg = true
		}
	}

	if quote != 0 || escaped {
		return nil, ErrUnbalancedQuotes
	}
	if inArg {
		args = append(args, cur.String())
	}
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}
	return args, nil
}
