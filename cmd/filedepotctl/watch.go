package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/filedepot/filedepot/core/depot"
	"github.com/filedepot/filedepot/core/infra/bus"
)

// runWatchCmd streams operation events from the bus until interrupted.
func runWatchCmd(args []string) {
	fs := newFlagSet("watch")
	natsURL := fs.String("nats", envOr("NATS_URL", defaultNatsURL), "nats url")
	queue := fs.String("queue", "", "queue group for shared consumption")
	fs.ParseArgs(args)

	natsBus, err := bus.NewNatsBus(*natsURL)
	check(err)
	defer natsBus.Close()

	check(natsBus.SubscribeOperations(*queue, func(op depot.Operation) error {
		line, err := json.Marshal(op)
		if err != nil {
			return err
		}
		fmt.Println(string(line))
		return nil
	}))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
