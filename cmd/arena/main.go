package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/drpcorg/blockarena/repl"
	"github.com/drpcorg/blockarena/utils"
)

func main() {
	dir := flag.String("dir", "arena.db", "pebble store directory")
	source := flag.String("source", "", "replica name announced to peers, a random uuid by default")
	verbose := flag.Bool("v", false, "log debug messages")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	r, err := repl.Open(repl.Options{
		Dir:    *dir,
		Source: *source,
		Out:    os.Stdout,
		Logger: utils.NewDefaultLogger(level),
	})
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-1)
	}
	if err = r.Console(); err == nil {
		err = r.Run()
	}
	if cerr := r.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-1)
	}
}
