package repl

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

// recorder is an Executor that remembers every call.
type recorder struct {
	calls [][]string
	err   error
}

func (r *recorder) exec(_ context.Context, args []string) error {
	r.calls = append(r.calls, args)
	return r.err
}

func newTestREPL(input string, rec *recorder) (*REPL, *bytes.Buffer) {
	out := &bytes.Buffer{}
	r := New(strings.NewReader(input), out, "minikv> ", rec.exec, NewCompleter("get", "set", "ping"), NewHistory(""))
	return r, out
}

func TestREPL_Run_Exit(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"exit command", "exit\n"},
		{"quit command", "QUIT\n"},
		{"EOF", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			r, _ := newTestREPL(tt.input, rec)
			if err := r.Run(context.Background()); err != nil {
				t.Errorf("Run() returned error: %v", err)
			}
			if len(rec.calls) != 0 {
				t.Errorf("executor called %d times", len(rec.calls))
			}
		})
	}
}

func TestREPL_Run_Executes(t *testing.T) {
	rec := &recorder{}
	r, out := newTestREPL("set k \"hello world\"\n\nget k\nexit\nget never\n", rec)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := [][]string{{"set", "k", "hello world"}, {"get", "k"}}
	if !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("calls = %q, want %q", rec.calls, want)
	}
	if prompts := strings.Count(out.String(), "minikv> "); prompts != 4 {
		t.Errorf("prompts = %d, want 4", prompts)
	}
}

func TestREPL_Run_LastLineWithoutNewline(t *testing.T) {
	rec := &recorder{}
	r, _ := newTestREPL("get k", rec)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(rec.calls) != 1 {
		t.Errorf("calls = %q, want one", rec.calls)
	}
}

func TestREPL_Run_ErrorsContinue(t *testing.T) {
	rec := &recorder{err: errors.New("lock error")}
	r, out := newTestREPL("get k\nget j\n", rec)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(rec.calls) != 2 {
		t.Errorf("calls = %d, want 2", len(rec.calls))
	}
	if got := strings.Count(out.String(), "(error) lock error"); got != 2 {
		t.Errorf("output = %q, want two error lines", out.String())
	}
}

func TestREPL_Run_UnknownAndHelp(t *testing.T) {
	rec := &recorder{}
	r, out := newTestREPL("gte k\nhelp\n'unterminated\n\"\"\n", rec)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(rec.calls) != 0 {
		t.Errorf("executor called for invalid input: %q", rec.calls)
	}
	text := out.String()
	for _, want := range []string{
		`unknown command "gte", did you mean get?`,
		"commands: exit, get, help, ping, quit, set",
		"(error) unbalanced quotes",
		`unknown command ""`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestREPL_Run_HistoryAdded(t *testing.T) {
	rec := &recorder{}
	history := NewHistory("")
	r := New(strings.NewReader("get a\n  get b  \nexit\n"), &bytes.Buffer{}, "> ", rec.exec, NewCompleter("get"), history)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for i, want := range []string{"exit", "get b", "get a"} {
		if got := history.Get(i); got != want {
			t.Errorf("history.Get(%d) = %q, want %q", i, got, want)
		}
	}
}

func TestREPL_Run_ContextCancelled(t *testing.T) {
	rec := &recorder{}
	r, _ := newTestREPL("get k\n", rec)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(rec.calls) != 0 {
		t.Errorf("executor ran after cancel: %q", rec.calls)
	}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line    string
		want    []string
		wantErr bool
	}{
		{"get k", []string{"get", "k"}, false},
		{"  set   k   v  ", []string{"set", "k", "v"}, false},
		{`set k "hello world"`, []string{"set", "k", "hello world"}, false},
		{`set k 'it''s'`, []string{"set", "k", "its"}, false},
		{`set k "a\"b\\c\n"`, []string{"set", "k", "a\"b\\c\n"}, false},
		{`set k 'no\escape'`, []string{"set", "k", `no\escape`}, false},
		{`set k ""`, []string{"set", "k", ""}, false},
		{"set\tk\tv", []string{"set", "k", "v"}, false},
		{`get "open`, nil, true},
		{`get "trailing\`, nil, true},
		{"   ", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := SplitArgs(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SplitArgs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}
