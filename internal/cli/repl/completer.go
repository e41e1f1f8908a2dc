package repl

import (
	"sort"
	"strings"
)

// Completer provides command completion for the REPL.
type Completer struct {
	commands []string
}

// NewCompleter creates a Completer over the given command names.
// Built-in commands (help, exit, quit) are always included.
func NewCompleter(commands ...string) *Completer {
	all := append([]string{}, commands...)
	all = append(all, "help", "exit", "quit")
	sort.Strings(all)
	return &Completer{commands: all}
}

// Commands returns every known command name in sorted order.
func (c *Completer) Commands() []string {
	return append([]string(nil), c.commands...)
}

// Complete returns the commands starting with prefix (case-insensitive).
// An empty prefix matches nothing.
func (c *Completer) Complete(prefix string) []string {
	prefix = strings.ToLower(prefix)
	if prefix == "" {
		return nil
	}
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}

// Known reports whether name is a command.
func (c *Completer) Known(name string) bool {
	name = strings.ToLower(name)
	for _, cmd := range c.commands {
		if cmd == name {
			return true
		}
	}
	return false
}
