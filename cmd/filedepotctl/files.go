package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/filedepot/filedepot/core/depot"
)

func runStoreCmd(args []string) {
	fs := newFlagSet("store")
	layer := fs.String("layer", depot.LayerTemporary, "target storage layer")
	session := fs.String("session", "default", "owning session")
	name := fs.String("name", "", "display name (defaults to the file name)")
	description := fs.String("description", "", "description")
	tags := fs.String("tags", "", "comma separated tags")
	newVersion := fs.Bool("new-version", false, "capture a version even for duplicate content")
	fs.ParseArgs(args)
	if fs.NArg() < 1 {
		fail("usage: filedepotctl store <file|-> [flags]")
	}

	content := readContent(fs.Arg(0))
	opts := depot.StoreOptions{
		Name:              *name,
		Description:       *description,
		Tags:              parseTags(*tags),
		RequestNewVersion: *newVersion,
	}
	if opts.Name == "" && fs.Arg(0) != "-" {
		opts.Name = filepath.Base(fs.Arg(0))
	}

	engine, done := newEngine(fs)
	defer done()
	res, err := engine.StoreFile(context.Background(), content, *layer, *session, opts)
	check(err)
	printJSON(res)
}

func runUpdateCmd(args []string) {
	fs := newFlagSet("update")
	description := fs.String("description", "", "replacement description")
	newVersion := fs.Bool("new-version", false, "capture a version even when auto backup is off")
	fs.ParseArgs(args)
	if fs.NArg() < 2 {
		fail("usage: filedepotctl update <file_id> <file|-> [flags]")
	}

	content := readContent(fs.Arg(1))
	engine, done := newEngine(fs)
	defer done()
	res, err := engine.UpdateFile(context.Background(), fs.Arg(0), content, depot.UpdateOptions{
		Description:       *description,
		RequestNewVersion: *newVersion,
	})
	check(err)
	printJSON(res)
}

func runGetCmd(args []string) {
	fs := newFlagSet("get")
	version := fs.Int("version", 0, "retrieve a specific retained version")
	output := fs.String("output", "", "write content to a file instead of stdout")
	fs.ParseArgs(args)
	if fs.NArg() < 1 {
		fail("usage: filedepotctl get <file_id> [flags]")
	}

	engine, done := newEngine(fs)
	defer done()

	var content []byte
	var err error
	if *version > 0 {
		content, _, err = engine.RetrieveFileVersion(context.Background(), fs.Arg(0), *version)
	} else {
		content, _, err = engine.RetrieveFile(context.Background(), fs.Arg(0))
	}
	check(err)

	if *output != "" {
		check(os.WriteFile(*output, content, 0o600))
		return
	}
	_, err = os.Stdout.Write(content)
	check(err)
}

func runRemoveCmd(args []string) {
	fs := newFlagSet("rm")
	fs.ParseArgs(args)
	if fs.NArg() < 1 {
		fail("usage: filedepotctl rm <file_id>")
	}
	engine, done := newEngine(fs)
	defer done()
	check(engine.DeleteFile(context.Background(), fs.Arg(0)))
}

func runListCmd(args []string) {
	fs := newFlagSet("ls")
	session := fs.String("session", "", "filter by session")
	fs.ParseArgs(args)
	engine, done := newEngine(fs)
	defer done()
	printJSON(engine.ListFiles(*session))
}

func runInfoCmd(args []string) {
	fs := newFlagSet("info")
	fs.ParseArgs(args)
	if fs.NArg() < 1 {
		fail("usage: filedepotctl info <file_id>")
	}
	engine, done := newEngine(fs)
	defer done()
	info, err := engine.FileInfo(fs.Arg(0))
	check(err)
	printJSON(info)
}

func runHistoryCmd(args []string) {
	fs := newFlagSet("history")
	fs.ParseArgs(args)
	if fs.NArg() < 1 {
		fail("usage: filedepotctl history <file_id>")
	}
	engine, done := newEngine(fs)
	defer done()
	history, err := engine.History(fs.Arg(0))
	check(err)
	printJSON(history)
}
