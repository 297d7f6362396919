// Command kraam searches parity games for small subgames won by Player0 from
// the start vertex. Runs read a game in the pgsolver text format and write
// their findings to an output directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := interruptContext()
	defer cancel()

	return newRootCommand().ExecuteContext(ctx)
}

func interruptContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		defer cancel()
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		select {
		case <-sig:
			fmt.Fprintln(os.Stderr, "interrupt received")
		case <-ctx.Done():
		}
		signal.Stop(sig)
	}()

	return ctx, cancel
}
