package command

import (
	"bytes"
	"context"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/minikv/internal/server/redisserver"
	"github.com/yndnr/minikv/internal/storage/memory"
	"github.com/yndnr/minikv/internal/telemetry/logger"
)

func startServer(t *testing.T) string {
	t.Helper()
	s := redisserver.New(redisserver.Config{Addr: "127.0.0.1:0"}, memory.New(),
		redisserver.WithLogger(logger.Discard()))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s.Addr().String()
}

// runApp runs the CLI with args and returns what it wrote.
func runApp(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := App()
	app.Reader = strings.NewReader(stdin)
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"minikv-cli", "--history-file", ""}, args...))
	return out.String(), err
}

func TestApp(t *testing.T) {
	app := App()
	if app.Name != "minikv-cli" {
		t.Errorf("Name = %q, want %q", app.Name, "minikv-cli")
	}
	if app.Action == nil {
		t.Error("Action should start interactive mode")
	}

	commandNames := make(map[string]bool)
	for _, cmd := range app.Commands {
		commandNames[cmd.Name] = true
	}
	for _, name := range []string{"get", "set", "ping"} {
		if !commandNames[name] {
			t.Errorf("missing required command: %s", name)
		}
	}
}

func TestApp_GlobalFlags(t *testing.T) {
	flagNames := make(map[string]bool)
	for _, flag := range globalFlags() {
		flagNames[flag.Names()[0]] = true
	}
	for _, name := range []string{"server", "timeout", "output", "history-file"} {
		if !flagNames[name] {
			t.Errorf("missing required flag: %s", name)
		}
	}
}

func TestParseGlobalFlags(t *testing.T) {
	var got *GlobalFlags
	app := App()
	app.Writer = &bytes.Buffer{}
	app.Action = func(c *cli.Context) error {
		var err error
		got, err = ParseGlobalFlags(c)
		return err
	}

	err := app.Run([]string{"minikv-cli", "-s", "10.0.0.1:7000", "-t", "250ms", "-o", "json"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got.Server != "10.0.0.1:7000" {
		t.Errorf("Server = %q", got.Server)
	}
	if got.Timeout != 250*time.Millisecond {
		t.Errorf("Timeout = %v", got.Timeout)
	}
	if got.Output != "json" {
		t.Errorf("Output = %q", got.Output)
	}
}

func TestParseGlobalFlags_Defaults(t *testing.T) {
	t.Setenv("MINIKV_SERVER", "")
	os.Unsetenv("MINIKV_SERVER")

	var got *GlobalFlags
	app := App()
	app.Action = func(c *cli.Context) error {
		var err error
		got, err = ParseGlobalFlags(c)
		return err
	}
	if err := app.Run([]string{"minikv-cli"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got.Server != DefaultServer {
		t.Errorf("Server = %q, want %q", got.Server, DefaultServer)
	}
	if got.Output != "raw" {
		t.Errorf("Output = %q, want raw", got.Output)
	}
}

func TestParseGlobalFlags_BadOutput(t *testing.T) {
	addr := startServer(t)
	if _, err := runApp(t, "", "-s", addr, "-o", "table", "get", "k"); err == nil {
		t.Fatal("expected error for unknown output format")
	}
}

func TestApp_ServerFromEnv(t *testing.T) {
	addr := startServer(t)
	t.Setenv("MINIKV_SERVER", addr)

	out, err := runApp(t, "", "set", "k", "v")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out != "OK\n" {
		t.Errorf("output = %q, want OK", out)
	}
}

func TestApp_ConnectFails(t *testing.T) {
	// Reserve a port, then free it so nothing listens there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	_, err = runApp(t, "", "-s", addr, "-t", "200ms", "get", "k")
	if err == nil || !strings.Contains(err.Error(), "connect") {
		t.Fatalf("Run() error = %v, want connect error", err)
	}
}

func TestInteractive(t *testing.T) {
	addr := startServer(t)
	in := "set greeting \"hello world\"\nget greeting\nget missing\nexit\n"

	out, err := runApp(t, in, "-s", addr)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, want := range []string{
		"connected to " + addr,
		"OK\n",
		"\"hello world\"\n",
		"(nil)\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestInteractive_ErrorsKeepSessionOpen(t *testing.T) {
	addr := startServer(t)
	in := "get\nset k v\nget k\n"

	out, err := runApp(t, in, "-s", addr)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out, "(error) usage: get <key>") {
		t.Errorf("output missing usage error:\n%s", out)
	}
	if !strings.Contains(out, "\"v\"\n") {
		t.Errorf("session did not continue after error:\n%s", out)
	}
}

func TestInteractive_UnknownArg(t *testing.T) {
	if _, err := runApp(t, "", "frobnicate"); err == nil {
		t.Fatal("expected error for unknown command")
	}
}
