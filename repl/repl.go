// Package repl is the interactive console of a block arena replica.
package repl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	ba "github.com/drpcorg/blockarena"
	"github.com/drpcorg/blockarena/blocks"
	"github.com/drpcorg/blockarena/host"
	"github.com/drpcorg/blockarena/replication"
	"github.com/drpcorg/blockarena/storage"
	"github.com/drpcorg/blockarena/utils"
	"github.com/ergochat/readline"
	"github.com/prometheus/client_golang/prometheus"
)

// REPL per se.
type REPL struct {
	Arena *ba.Arena
	Store *storage.Store
	Hub   *replication.Hub
	Out   io.Writer
	Log   utils.Logger

	// Images bounds the image blocks kept in Arena.
	Images *blocks.Resources

	ctx      context.Context
	cancel   context.CancelFunc
	rl       *readline.Instance
	srv      *http.Server
	registry *prometheus.Registry
}

type Options struct {
	Dir     string
	Storage storage.Options
	Source  string
	Out     io.Writer
	Logger  utils.Logger

	// MaxImages is the number of image blocks kept, 256 by default.
	MaxImages int
}

// Open loads the arena kept in dir.
func Open(opts Options) (repl *REPL, err error) {
	if opts.Logger == nil {
		opts.Logger = utils.NewDefaultLogger(slog.LevelWarn)
	}
	if opts.MaxImages == 0 {
		opts.MaxImages = 256
	}
	if opts.Storage.Logger == nil {
		opts.Storage.Logger = opts.Logger
	}
	store, err := storage.Open(opts.Dir, opts.Storage)
	if err != nil {
		return nil, err
	}
	arena := blocks.NewArena(ba.Options{Logger: opts.Logger})
	ctx, cancel := context.WithCancel(context.Background())
	stats, err := store.LoadArena(ctx, arena)
	if err != nil {
		cancel()
		_ = store.Close()
		return nil, err
	}
	images, err := blocks.NewResources(arena, opts.MaxImages)
	if err != nil {
		cancel()
		_ = store.Close()
		return nil, err
	}
	images.Track()
	repl = &REPL{
		Arena:  arena,
		Images: images,
		Store:  store,
		Hub:    replication.NewHub(host.Wrap(arena, opts.Source), replication.Options{}),
		Out:    opts.Out,
		Log:    opts.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
	repl.printf("%d blocks loaded from %s (%d dropped)\n", stats.Applied, opts.Dir, stats.Dropped)
	return repl, nil
}

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),

	readline.PcItem("table"),
	readline.PcItem("box"),
	readline.PcItem("rename"),
	readline.PcItem("image"),

	readline.PcItem("list"),
	readline.PcItem("show"),
	readline.PcItem("dump"),
	readline.PcItem("save"),

	readline.PcItem("listen"),
	readline.PcItem("connect"),

	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func (repl *REPL) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(repl.Out, format, args...)
}

// Console attaches a readline prompt.
func (repl *REPL) Console() (err error) {
	repl.rl, err = readline.NewEx(&readline.Config{
		Prompt:          "▦ ",
		HistoryFile:     ".arena_cmd_log.txt",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return
	}
	repl.rl.CaptureExitSignal()
	repl.Out = repl.rl
	return
}

// Run reads and executes commands until exit or EOF.
func (repl *REPL) Run() error {
	for {
		line, err := repl.rl.Readline()
		if err == readline.ErrInterrupt && len(line) != 0 {
			continue
		}
		if err == io.EOF || err == readline.ErrInterrupt {
			line = "exit"
		} else if err != nil {
			return err
		}
		err = repl.Execute(line)
		if err == io.EOF {
			return nil
		} else if err != nil {
			repl.printf("%s\n", err.Error())
		}
	}
}

// Execute runs one command line. exit returns io.EOF.
func (repl *REPL) Execute(line string) (err error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "help":
		repl.printf("%s", Help)
	// ----- blocks -----
	case "table":
		err = repl.CommandTable(args)
	case "box":
		err = repl.CommandBox(args)
	case "rename":
		err = repl.CommandRename(args)
	case "image":
		err = repl.CommandImage(args)
	case "ls", "list":
		err = repl.CommandList(args)
	case "show", "cat":
		err = repl.CommandShow(args)
	// ----- storage -----
	case "save":
		err = repl.CommandSave(args)
	case "dump":
		err = repl.CommandDump(args)
	// ----- networking -----
	case "listen":
		err = repl.CommandListen(args)
	case "connect":
		err = repl.CommandConnect(args)
	case "exit", "quit":
		err = repl.CommandSave(nil)
		if err == nil {
			err = io.EOF
		}
	default:
		err = fmt.Errorf("command unknown: %s", cmd)
	}
	return
}

func (repl *REPL) Close() error {
	repl.cancel()
	if repl.srv != nil {
		_ = repl.srv.Close()
		repl.srv = nil
	}
	_ = repl.Hub.Close()
	if repl.rl != nil {
		_ = repl.rl.Close()
		repl.rl = nil
	}
	return repl.Store.Close()
}
