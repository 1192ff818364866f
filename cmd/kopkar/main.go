// Command kopkar is a command line client for the cooperative member API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/kopkar/kopkar-client/pkg/logging"
	"github.com/kopkar/kopkar-client/pkg/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx, os.Getenv, os.Getwd, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	switch {
	case err == nil:
	case errors.Is(err, pflag.ErrHelp):
	case errors.Is(err, errUsage):
		fmt.Fprintf(os.Stderr, "kopkar: %v\n\n", err)
		printUsage(os.Stderr)
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "kopkar: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, getenv func(string) string, getwd func() (string, error), args []string, stdout, stderr io.Writer) error {
	c := NewConfig()
	if err := c.LoadDotEnv(getwd); err != nil {
		return fmt.Errorf("error while loading .env: %w", err)
	}
	if err := c.LoadEnv(getenv); err != nil {
		return fmt.Errorf("error while loading environment: %w", err)
	}
	rest, err := c.ParseFlags(args)
	if err != nil {
		return err
	}

	if len(rest) == 0 {
		return fmt.Errorf("%w: no command given", errUsage)
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, rest[0])
	}

	if err := c.Validate(); err != nil {
		return err
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(c.LogLevel),
		Pretty: c.Pretty,
		Output: stderr,
	})

	app, err := NewApp(ctx, c, stdout)
	if err != nil {
		return err
	}
	defer app.Close()

	err = cmd.run(ctx, app, rest[1:])

	if c.Stats {
		printStats(stderr)
	}
	return err
}

func printStats(w io.Writer) {
	snapshot, err := metrics.Snapshot()
	if err != nil {
		fmt.Fprintf(w, "kopkar: %v\n", err)
		return
	}
	for _, name := range metrics.Names(snapshot) {
		fmt.Fprintf(w, "%-45s %g\n", name, snapshot[name])
	}
}
