// Command depot is the package-manager CLI: a thin dispatcher over
// internal/depot's operations. Grounded on golang-dep/cmd/dep/main.go's
// command-table dispatch (Config built from os.Args/os.Environ, a
// command interface registered in a slice, usage printed via
// tabwriter on a parse failure).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/depotpm/depot/internal/depot"
	"github.com/depotpm/depot/internal/logutil"
)

// Exit codes per spec.md §6.
const (
	exitOK        = 0
	exitOperation = 1
	exitUsage     = 2
	exitInterrupt = 130
)

// command is one depot subcommand.
type command interface {
	Name() string
	Args() string
	ShortHelp() string
	Register(*flag.FlagSet)
	Run(ctx context.Context, c *depot.Context, args []string) error
}

// config is the process-level input, built once in main and threaded
// through Run so tests can exercise Run without touching os.Args.
type config struct {
	Args       []string
	Stdout     io.Writer
	Stderr     io.Writer
	WorkingDir string
}

func main() {
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "depot:", err)
		os.Exit(exitOperation)
	}
	cfg := config{
		Args:       os.Args[1:],
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		WorkingDir: wd,
	}
	os.Exit(cfg.run())
}

func commands() []command {
	return []command{
		&resolveCmd{},
		&addCmd{},
		&rmCmd{},
		&upCmd{},
		&instantiateCmd{},
		&statusCmd{},
		&registryCmd{},
	}
}

func (cfg config) usage(cmds []command) {
	w := tabwriter.NewWriter(cfg.Stderr, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "usage: depot <command> [arguments]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range cmds {
		fmt.Fprintf(w, "  %s %s\t%s\n", c.Name(), c.Args(), c.ShortHelp())
	}
	w.Flush()
}

func (cfg config) run() (exitCode int) {
	cmds := commands()
	if len(cfg.Args) == 0 {
		cfg.usage(cmds)
		return exitUsage
	}

	var matched command
	for _, c := range cmds {
		if c.Name() == cfg.Args[0] {
			matched = c
			break
		}
	}
	if matched == nil {
		fmt.Fprintf(cfg.Stderr, "depot: unknown command %q\n\n", cfg.Args[0])
		cfg.usage(cmds)
		return exitUsage
	}

	fs := flag.NewFlagSet(matched.Name(), flag.ContinueOnError)
	fs.SetOutput(cfg.Stderr)
	matched.Register(fs)
	if err := fs.Parse(cfg.Args[1:]); err != nil {
		return exitUsage
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	interrupted := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			close(interrupted)
			cancel()
		case <-ctx.Done():
		}
	}()

	log := logutil.New(cfg.Stderr)
	dc, err := depot.NewContext(cfg.WorkingDir, depot.InteractiveAgent{In: os.Stdin, Out: cfg.Stderr}, log)
	if err != nil {
		fmt.Fprintln(cfg.Stderr, "depot:", err)
		return exitOperation
	}

	err = matched.Run(ctx, dc, fs.Args())
	select {
	case <-interrupted:
		return exitInterrupt
	default:
	}
	if err != nil {
		fmt.Fprintln(cfg.Stderr, "depot:", err)
		return exitOperation
	}
	return exitOK
}
