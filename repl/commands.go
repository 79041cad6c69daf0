package repl

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	ba "github.com/drpcorg/blockarena"
	"github.com/drpcorg/blockarena/arena_errors"
	"github.com/drpcorg/blockarena/blocks"
	"github.com/drpcorg/blockarena/network"
	"github.com/drpcorg/blockarena/replication"
	"github.com/drpcorg/blockarena/storage"
	"github.com/drpcorg/blockarena/u128"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Help = `table <name>              add a table
box <table-id> <name>     add a boxblock to a table
rename <id> <name>        rename a table, boxblock, property or channel
image <file> [table-id]   add a png, jpeg, gif or webp image, optionally as a table texture
list [kind]               list blocks, optionally of one kind
show <id> [depth]         print a block packed at OnlyId, FirstBlock or Recursive
save                      save the arena into the store
dump                      print every block
listen <addr>             accept peers at ws://addr/sync, metrics at /metrics
connect <url>             sync with a peer
exit                      save and quit
`

var HelpTable = errors.New("table <name>")
var HelpBox = errors.New("box <table-id> <name>")
var HelpRename = errors.New("rename <id> <name>")
var HelpImage = errors.New("image <file> [table-id]")
var HelpShow = errors.New("show <id> [OnlyId|FirstBlock|Recursive]")
var HelpListen = errors.New("listen <host:port>")
var HelpConnect = errors.New("connect <ws://host:port/sync>")

func parseID(arg string) (u128.ID, error) {
	id, err := u128.Parse(arg)
	if err != nil || id.IsNone() {
		return u128.None, pkgerrors.Wrapf(arena_errors.ErrObjectUnknown, "bad id %q", arg)
	}
	return id, nil
}

func (repl *REPL) CommandTable(args []string) error {
	if len(args) == 0 {
		return HelpTable
	}
	table := ba.Insert(repl.Arena, blocks.NewTable(strings.Join(args, " ")))
	defer table.Release()
	repl.Hub.Publish(repl.ctx, table.ID())
	repl.printf("%s\n", table.ID())
	return nil
}

func (repl *REPL) CommandBox(args []string) error {
	if len(args) < 2 {
		return HelpBox
	}
	tid, err := parseID(args[0])
	if err != nil {
		return err
	}
	table := ba.HandleOf[*blocks.Table](repl.Arena, tid)
	defer table.Release()
	box, err := blocks.CreateChild(repl.Arena, table, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	defer box.Release()
	repl.Hub.Publish(repl.ctx, tid)
	repl.printf("%s\n", box.ID())
	return nil
}

func (repl *REPL) CommandImage(args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return HelpImage
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	img, err := blocks.DecodeImage(repl.ctx, filepath.Base(args[0]), f)
	if err != nil {
		return err
	}
	ref := repl.Images.Add(img)
	repl.Hub.Publish(repl.ctx, ref.ID())
	if len(args) == 2 {
		tid, err := parseID(args[1])
		if err != nil {
			return err
		}
		table := ba.HandleOf[*blocks.Table](repl.Arena, tid)
		defer table.Release()
		if err = table.Update(func(t *blocks.Table) { t.Texture = ref }); err != nil {
			return err
		}
		repl.Hub.Publish(repl.ctx, tid)
	}
	repl.printf("%s\n", ref.ID())
	return nil
}

func rename[T ba.Block](a *ba.Arena, id u128.ID, set func(T)) error {
	h := ba.HandleOf[T](a, id)
	defer h.Release()
	return h.Update(set)
}

func (repl *REPL) CommandRename(args []string) (err error) {
	if len(args) < 2 {
		return HelpRename
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	name := strings.Join(args[1:], " ")
	switch kind := repl.Arena.KindOf(id); kind {
	case blocks.KindTable:
		err = rename(repl.Arena, id, func(t *blocks.Table) { t.Name = name })
	case blocks.KindBoxblock:
		err = rename(repl.Arena, id, func(b *blocks.Boxblock) { b.Name = name })
	case blocks.KindProperty:
		err = rename(repl.Arena, id, func(p *blocks.Property) { p.Name = name })
	case blocks.KindChatChannel:
		err = rename(repl.Arena, id, func(c *blocks.ChatChannel) { c.Name = name })
	case "":
		err = pkgerrors.Wrapf(arena_errors.ErrObjectUnknown, "%s", id)
	default:
		err = pkgerrors.Wrapf(arena_errors.ErrWrongKind, "%s has no name", kind)
	}
	if err == nil {
		repl.Hub.Publish(repl.ctx, id)
	}
	return
}

func (repl *REPL) CommandList(args []string) error {
	var kind ba.Kind
	if len(args) > 0 {
		kind = ba.Kind(args[0])
	}
	for _, id := range repl.Arena.IDs() {
		k := repl.Arena.KindOf(id)
		if kind != "" && k != kind {
			continue
		}
		ts, _ := repl.Arena.TimestampOf(id)
		repl.printf("%s\t%s\t%d\n", id, k, ts)
	}
	return nil
}

func (repl *REPL) print(v any) error {
	js, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	repl.printf("%s\n", js)
	return nil
}

func (repl *REPL) CommandShow(args []string) error {
	if len(args) == 0 {
		return HelpShow
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	depth := ba.FirstBlock
	if len(args) > 1 {
		var ok bool
		if depth, ok = ba.ParsePackDepth(args[1]); !ok {
			return HelpShow
		}
	}
	rec, ok := repl.Arena.Pack(id, depth)
	if !ok {
		return pkgerrors.Wrapf(arena_errors.ErrObjectUnknown, "%s", id)
	}
	return repl.print(rec)
}

func (repl *REPL) CommandSave(args []string) error {
	n, err := repl.Store.SaveArena(repl.ctx, repl.Arena)
	if err != nil {
		return err
	}
	repl.printf("%d blocks saved\n", n)
	return nil
}

func (repl *REPL) CommandDump(args []string) error {
	return repl.print(repl.Arena.PackAll(ba.OnlyID))
}

func (repl *REPL) CommandListen(args []string) error {
	if len(args) != 1 {
		return HelpListen
	}
	if repl.srv != nil {
		return fmt.Errorf("already listening at %s", repl.srv.Addr)
	}
	ln, err := net.Listen("tcp", args[0])
	if err != nil {
		return err
	}
	if repl.registry == nil {
		repl.registry = prometheus.NewRegistry()
		repl.registry.MustRegister(ba.Collectors()...)
		repl.registry.MustRegister(storage.Collectors()...)
		repl.registry.MustRegister(replication.Collectors()...)
		repl.registry.MustRegister(network.Collectors()...)
		repl.registry.MustRegister(storage.NewCollector(repl.Store))
	}
	mux := http.NewServeMux()
	mux.Handle("/sync", network.Handler(repl.Hub, repl.Log))
	mux.Handle("/metrics", promhttp.HandlerFor(repl.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: ln.Addr().String(), Handler: mux}
	repl.srv = srv
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			repl.Log.Error("listen failed", "addr", ln.Addr().String(), "err", err)
		}
	}()
	repl.printf("listening at ws://%s/sync\n", ln.Addr())
	return nil
}

func (repl *REPL) CommandConnect(args []string) error {
	if len(args) != 1 {
		return HelpConnect
	}
	url := args[0]
	go func() {
		if err := network.Dial(repl.ctx, url, repl.Hub, repl.Log); err != nil {
			repl.Log.Warn("connection ended", "url", url, "err", err)
		}
	}()
	return nil
}
