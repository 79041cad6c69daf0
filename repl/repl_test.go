package repl

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	ba "github.com/drpcorg/blockarena"
	"github.com/drpcorg/blockarena/arena_errors"
	"github.com/drpcorg/blockarena/blocks"
	"github.com/drpcorg/blockarena/storage"
	"github.com/drpcorg/blockarena/u128"
	"github.com/drpcorg/blockarena/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T, fs vfs.FS, out *bytes.Buffer) *REPL {
	r, err := Open(Options{
		Dir:     "arena",
		Storage: storage.Options{Pebble: pebble.Options{FS: fs}},
		Out:     out,
		Logger:  utils.Discard,
	})
	require.Nil(t, err)
	return r
}

// run executes line and returns the trimmed output.
func run(t *testing.T, r *REPL, out *bytes.Buffer, line string) string {
	out.Reset()
	require.Nil(t, r.Execute(line))
	return strings.TrimSpace(out.String())
}

func TestREPL_Session(t *testing.T) {
	fs := vfs.NewMem()
	out := &bytes.Buffer{}
	r := open(t, fs, out)

	tid := u128.MustParse(run(t, r, out, "table Dark Forest"))
	bid := u128.MustParse(run(t, r, out, "box "+tid.String()+" rock"))
	assert.Empty(t, run(t, r, out, "rename "+bid.String()+" big rock"))

	name, ok := ba.MapRef(ba.RefOf[*blocks.Table](tid), r.Arena, func(tb *blocks.Table) string { return tb.Name })
	require.True(t, ok)
	assert.Equal(t, "Dark Forest", name)
	box, _ := ba.Get[*blocks.Boxblock](r.Arena, bid)
	assert.Equal(t, "big rock", box.Name)

	listing := run(t, r, out, "list Boxblock")
	assert.Contains(t, listing, bid.String())
	assert.NotContains(t, listing, tid.String())

	shown := run(t, r, out, "show "+tid.String()+" Recursive")
	assert.Contains(t, shown, `"big rock"`)
	shown = run(t, r, out, "show "+tid.String()+" OnlyId")
	assert.NotContains(t, shown, `"big rock"`)
	assert.Contains(t, run(t, r, out, "dump"), bid.String())

	out.Reset()
	assert.Equal(t, io.EOF, r.Execute("exit"))
	assert.Equal(t, "2 blocks saved", strings.TrimSpace(out.String()))
	require.Nil(t, r.Close())

	out.Reset()
	r = open(t, fs, out)
	defer r.Close()
	assert.Contains(t, out.String(), "2 blocks loaded")
	assert.Equal(t, 2, r.Arena.Len())
}

func TestREPL_Errors(t *testing.T) {
	out := &bytes.Buffer{}
	r := open(t, vfs.NewMem(), out)
	defer r.Close()

	assert.Equal(t, HelpTable, r.Execute("table"))
	assert.Equal(t, HelpBox, r.Execute("box x"))
	assert.Equal(t, HelpShow, r.Execute("show"))
	assert.ErrorIs(t, r.Execute("show nothex"), arena_errors.ErrObjectUnknown)
	assert.ErrorIs(t, r.Execute("rename "+u128.New().String()+" x"), arena_errors.ErrObjectUnknown)
	assert.ErrorContains(t, r.Execute("frobnicate"), "command unknown")
	assert.Nil(t, r.Execute("   "))
	assert.ErrorIs(t, r.Execute("box "+u128.New().String()+" rock"), arena_errors.ErrObjectUnknown)
	assert.Equal(t, 0, r.Arena.Len())

	out.Reset()
	require.Nil(t, r.Execute("table Cave"))
	tid := strings.TrimSpace(out.String())
	assert.Equal(t, HelpShow, r.Execute("show "+tid+" Deep"))
}

func TestREPL_Listen(t *testing.T) {
	out := &bytes.Buffer{}
	r := open(t, vfs.NewMem(), out)
	defer r.Close()
	require.Nil(t, r.Execute("listen 127.0.0.1:0"))
	assert.Contains(t, out.String(), "/sync")
	assert.Error(t, r.Execute("listen 127.0.0.1:0"))
	assert.Equal(t, HelpConnect, r.Execute("connect"))
}

// Options.Logger may be left out; the sync endpoints log through the
// default one.
func TestREPL_DefaultLogger(t *testing.T) {
	openMem := func(out *bytes.Buffer) *REPL {
		r, err := Open(Options{
			Dir:     "arena",
			Storage: storage.Options{Pebble: pebble.Options{FS: vfs.NewMem()}},
			Out:     out,
		})
		require.Nil(t, err)
		return r
	}
	out := &bytes.Buffer{}
	server := openMem(out)
	defer server.Close()
	require.NotNil(t, server.Log)
	out.Reset()
	require.Nil(t, server.Execute("listen 127.0.0.1:0"))
	url := strings.TrimPrefix(strings.TrimSpace(out.String()), "listening at ")

	client := openMem(out)
	defer client.Close()
	tid := u128.MustParse(run(t, client, out, "table Forest"))
	require.Nil(t, client.Execute("connect "+url))
	assert.Eventually(t, func() bool {
		_, ok := ba.Get[*blocks.Table](server.Arena, tid)
		return ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestREPL_Image(t *testing.T) {
	var buf bytes.Buffer
	require.Nil(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 3))))
	file := filepath.Join(t.TempDir(), "floor.png")
	require.Nil(t, os.WriteFile(file, buf.Bytes(), 0o644))

	out := &bytes.Buffer{}
	r := open(t, vfs.NewMem(), out)
	defer r.Close()
	tid := u128.MustParse(run(t, r, out, "table Hall"))
	iid := u128.MustParse(run(t, r, out, "image "+file+" "+tid.String()))

	img, ok := ba.Get[*blocks.ImageData](r.Arena, iid)
	require.True(t, ok)
	assert.Equal(t, "floor.png", img.Name)
	assert.Equal(t, 4, img.Width)
	tex, _ := ba.MapRef(ba.RefOf[*blocks.Table](tid), r.Arena, func(tb *blocks.Table) u128.ID { return tb.Texture.ID() })
	assert.Equal(t, iid, tex)
	assert.Equal(t, 1, r.Images.Len())

	assert.Equal(t, HelpImage, r.Execute("image"))
	assert.Error(t, r.Execute("image "+filepath.Join(t.TempDir(), "missing.png")))
}
