package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	err := run(context.Background(), os.Args[1], os.Args[2:])
	if err == flag.ErrHelp {
		os.Exit(1)
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "pktgen: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "generate":
		return NewGenerateCommand().Run(ctx, args)
	case "help", "-h", "--help":
		usage()
		return flag.ErrHelp
	default:
		return fmt.Errorf("unknown command %q; run 'pktgen help'", cmd)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `
pktgen generates concrete test packets by exploring the parser and control
graphs of a packet-processing program with a constraint solver.

Usage:

	pktgen generate [arguments] <graph file>

Run 'pktgen generate -h' for the generate arguments.
`[1:])
}
