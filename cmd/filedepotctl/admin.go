package main

import (
	"context"
	"fmt"
)

func runOpsCmd(args []string) {
	fs := newFlagSet("ops")
	limit := fs.Int("limit", 50, "maximum entries, newest first")
	fs.ParseArgs(args)
	engine, done := newEngine(fs)
	defer done()
	printJSON(engine.OperationHistory(*limit))
}

func runMetricsCmd(args []string) {
	fs := newFlagSet("metrics")
	fs.ParseArgs(args)
	engine, done := newEngine(fs)
	defer done()
	snap, err := engine.Metrics(context.Background())
	check(err)
	printJSON(snap)
}

func runSweepCmd(args []string) {
	fs := newFlagSet("sweep")
	fs.ParseArgs(args)
	if fs.NArg() < 1 {
		fail("usage: filedepotctl sweep <layer>")
	}
	engine, done := newEngine(fs)
	defer done()
	evicted, err := engine.SweepLayer(context.Background(), fs.Arg(0))
	check(err)
	fmt.Printf("evicted %d\n", evicted)
}
