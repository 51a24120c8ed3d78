package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"transcribe/internal/control"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit code.
// Stdout only ever receives command output.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := control.NewRootCmd(version)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ue *control.UsageError
	if errors.As(err, &ue) {
		if ue.Err != nil {
			_, _ = fmt.Fprintf(stderr, "error: %v\n", ue.Err)
		}
		_, _ = fmt.Fprintln(stderr, control.Usage)
		return 1
	}
	_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
	return 1
}
