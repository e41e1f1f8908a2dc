package redisserver

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yndnr/minikv/pkg/frame"
)

// ErrProtocol is wrapped by every request parsing failure.
var ErrProtocol = errors.New("protocol error")

// maxNameInError bounds how much of an unknown command name is echoed back.
const maxNameInError = 32

// Command is a parsed request. The set of implementations is closed.
type Command interface {
	isCommand()
}

// Get looks up Key.
type Get struct {
	Key string
}

// Set stores Value under Key.
type Set struct {
	Key   string
	Value []byte
}

// Reserved is a recognized command without an implementation.
type Reserved struct {
	Name string
	Args [][]byte
}

func (Get) isCommand()      {}
func (Set) isCommand()      {}
func (Reserved) isCommand() {}

// reservedCommands parse but answer "unimplemented".
var reservedCommands = map[string]bool{
	"PING":        true,
	"PUBLISH":     true,
	"SUBSCRIBE":   true,
	"UNSUBSCRIBE": true,
}

// ParseCommand turns a request frame into a Command.
//
// A request is an array of simple or bulk strings whose first element names
// the command (case-insensitive). Any other shape, an unknown name or a wrong
// argument count returns an error wrapping ErrProtocol. Parsing has no side
// effects.
func ParseCommand(f frame.Frame) (Command, error) {
	arr, ok := f.(frame.Array)
	if !ok {
		kind := "nil"
		if f != nil {
			kind = f.Kind().String()
		}
		return nil, fmt.Errorf("%w: expected array request, got %s", ErrProtocol, kind)
	}
	if len(arr) == 0 {
		return nil, fmt.Errorf("%w: empty request", ErrProtocol)
	}

	args := make([][]byte, len(arr))
	for i, el := range arr {
		switch v := el.(type) {
		case frame.Bulk:
			args[i] = v
		case frame.Simple:
			args[i] = []byte(v)
		default:
			return nil, fmt.Errorf("%w: argument %d is %s, want bulk or simple string", ErrProtocol, i, el.Kind())
		}
	}

	name := normalizeCommandName(args[0])
	switch name {
	case "GET":
		if len(args) != 2 {
			return nil, arityError(name)
		}
		key, err := parseKey(args[1])
		if err != nil {
			return nil, err
		}
		return Get{Key: key}, nil

	case "SET":
		if len(args) != 3 {
			return nil, arityError(name)
		}
		key, err := parseKey(args[1])
		if err != nil {
			return nil, err
		}
		return Set{Key: key, Value: args[2]}, nil
	}

	if reservedCommands[name] {
		return Reserved{Name: name, Args: args[1:]}, nil
	}

	if len(name) > maxNameInError {
		name = name[:maxNameInError] + "..."
	}
	return nil, fmt.Errorf("%w: unknown command %q", ErrProtocol, name)
}

func arityError(name string) error {
	return fmt.Errorf("%w: wrong number of arguments for '%s' command", ErrProtocol, strings.ToLower(name))
}

func parseKey(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: key is not valid UTF-8", ErrProtocol)
	}
	return string(b), nil
}

// commandName returns the lowercase name used in logs and metric labels.
func commandName(cmd Command) string {
	switch c := cmd.(type) {
	case Get:
		return "get"
	case Set:
		return "set"
	case Reserved:
		return strings.ToLower(c.Name)
	default:
		return "unknown"
	}
}

func normalizeCommandName(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	// Uppercase ASCII without allocating for already uppercased tokens.
	if bytes.ContainsAny(b, "abcdefghijklmnopqrstuvwxyz") {
		return strings.ToUpper(string(b))
	}
	return string(b)
}
