package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/common-nighthawk/go-figure"

	"github.com/jrsteele09/zhancare-client/apiclient"
	"github.com/jrsteele09/zhancare-client/auth"
	"github.com/jrsteele09/zhancare-client/internal/config"
	"github.com/jrsteele09/zhancare-client/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(stdout)
		return 0
	}
	cmd, ok := findCommand(args[0])
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	a, err := newApp(ctx, cfg, stdout, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer a.close(context.Background())

	if cmd.protected {
		if err := a.requireLogin(); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	}
	if err := cmd.run(ctx, a, args[1:]); err != nil {
		printError(stderr, err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprint(w, figure.NewFigure("ZhanCare", "cybermedium", true).String())
	fmt.Fprintln(w, "\nUsage: zhancare <command> [flags]")
	fmt.Fprintln(w)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-16s %s\n", c.name, c.usage)
	}
}

// printError renders form errors field by field and everything else on one line.
func printError(w io.Writer, err error) {
	var fe *auth.FieldError
	if errors.As(err, &fe) && len(fe.Fields) > 0 {
		names := make([]string, 0, len(fe.Fields))
		for name := range fe.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "%s: %s\n", name, fe.Field(name))
		}
		return
	}
	if apiclient.IsSessionExpired(err) {
		// The session listener has already told the user.
		return
	}
	fmt.Fprintln(w, "error:", err)
}
