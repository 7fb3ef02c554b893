package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/filedepot/filedepot/core/depot"
	"github.com/filedepot/filedepot/core/infra/buildinfo"
	"github.com/filedepot/filedepot/core/infra/config"
	"github.com/filedepot/filedepot/core/infra/recordstore"
)

const (
	defaultRedisURL = "redis://localhost:6379"
	defaultNatsURL  = "nats://localhost:4222"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "store":
		runStoreCmd(args)
	case "update":
		runUpdateCmd(args)
	case "get":
		runGetCmd(args)
	case "rm":
		runRemoveCmd(args)
	case "ls":
		runListCmd(args)
	case "info":
		runInfoCmd(args)
	case "history":
		runHistoryCmd(args)
	case "ops":
		runOpsCmd(args)
	case "metrics":
		runMetricsCmd(args)
	case "sweep":
		runSweepCmd(args)
	case "watch":
		runWatchCmd(args)
	case "version":
		fmt.Println("filedepotctl", buildinfo.Current())
	default:
		usage()
		os.Exit(1)
	}
}

type flagSet struct {
	*flag.FlagSet
	redis    *string
	memory   *bool
	strategy *string
}

func newFlagSet(name string) *flagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	redis := fs.String("redis", envOr("REDIS_URL", defaultRedisURL), "redis url of the shared record store")
	memory := fs.Bool("memory", false, "use an ephemeral in-memory record store")
	strategy := fs.String("strategy", envOr("STRATEGY_CONFIG_PATH", ""), "strategy yaml file")
	return &flagSet{FlagSet: fs, redis: redis, memory: memory, strategy: strategy}
}

func (fs *flagSet) ParseArgs(args []string) {
	if err := fs.Parse(args); err != nil {
		fail(err.Error())
	}
}

// newEngine builds the persistence engine over the record store the flags
// select. The second return value tears both down.
func newEngine(fs *flagSet) (*depot.Engine, func()) {
	var records depot.RecordStore
	var meta depot.MetaStore
	closeStore := func() {}
	if *fs.memory {
		mem := recordstore.NewMemoryStore()
		records, meta = mem, mem
	} else {
		rs, err := recordstore.NewRedisStore(*fs.redis)
		check(err)
		records, meta = rs, rs
		closeStore = func() { _ = rs.Close() }
	}

	opts := depot.Options{Meta: meta}
	if *fs.strategy != "" {
		strategy, err := config.LoadStrategyConfig(*fs.strategy)
		check(err)
		opts.Strategy = &strategy
	}

	engine, err := depot.New(context.Background(), records, opts)
	if err != nil {
		closeStore()
		fail(err.Error())
	}
	return engine, func() {
		_ = engine.Close()
		closeStore()
	}
}

// readContent loads the payload from a file, or from stdin for "-".
func readContent(path string) []byte {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		check(err)
		return data
	}
	// #nosec G304 -- CLI explicitly reads local files provided by the operator.
	data, err := os.ReadFile(path)
	check(err)
	return data
}

func parseTags(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func printJSON(value any) {
	data, err := json.MarshalIndent(value, "", "  ")
	check(err)
	fmt.Println(string(data))
}

func usage() {
	fmt.Print(`filedepotctl - multi-layer file depot CLI

Usage:
  filedepotctl store <file|-> [--layer temporary] [--session default] [--name n] [--description d] [--tags a,b] [--new-version]
  filedepotctl update <file_id> <file|-> [--description d] [--new-version]
  filedepotctl get <file_id> [--version n] [--output path]
  filedepotctl rm <file_id>
  filedepotctl ls [--session s]
  filedepotctl info <file_id>
  filedepotctl history <file_id>
  filedepotctl ops [--limit 50]
  filedepotctl metrics
  filedepotctl sweep <layer>
  filedepotctl watch [--nats url] [--queue q]
  filedepotctl version

Global flags:
  --redis     Redis URL of the shared record store (default from REDIS_URL)
  --memory    Use an ephemeral in-memory record store
  --strategy  Strategy YAML file (default from STRATEGY_CONFIG_PATH)
`)
}

func envOr(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func check(err error) {
	if err != nil {
		fail(err.Error())
	}
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
