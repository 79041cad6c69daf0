package network

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ba "github.com/drpcorg/blockarena"
	"github.com/drpcorg/blockarena/blocks"
	"github.com/drpcorg/blockarena/host"
	"github.com/drpcorg/blockarena/replication"
	"github.com/drpcorg/blockarena/utils"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T) (*ba.Arena, ba.Handle[*blocks.Table], *replication.Hub, string) {
	a := blocks.NewArena(ba.Options{Logger: utils.Discard})
	table := ba.Insert(a, blocks.NewTable("Forest"))
	_, err := blocks.CreateChild(a, table, "rock")
	require.Nil(t, err)
	hub := replication.NewHub(host.Wrap(a, "server"), replication.Options{})
	srv := httptest.NewServer(Handler(hub, utils.Discard))
	t.Cleanup(srv.Close)
	return a, table, hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDial(t *testing.T) {
	a, table, hubA, url := serve(t)
	b := blocks.NewArena(ba.Options{Logger: utils.Discard})
	hubB := replication.NewHub(host.Wrap(b, "client"), replication.Options{})

	done := make(chan error, 1)
	go func() {
		done <- Dial(context.Background(), url, hubB, utils.Discard)
	}()
	assert.Eventually(t, func() bool { return b.Len() == 2 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, hubA.Len())

	require.Nil(t, table.Update(func(tb *blocks.Table) { tb.Name = "Dark Forest" }))
	hubA.Publish(context.Background(), table.ID())
	assert.Eventually(t, func() bool {
		name, _ := ba.MapRef(table.Ref(), b, func(tb *blocks.Table) string { return tb.Name })
		return name == "Dark Forest"
	}, 5*time.Second, 5*time.Millisecond)

	require.Nil(t, hubB.Close())
	select {
	case err := <-done:
		assert.Nil(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end")
	}
	assert.Eventually(t, func() bool { return hubA.Len() == 0 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, a.PackAll(ba.Recursive), b.PackAll(ba.Recursive))
}

func TestDial_Cancelled(t *testing.T) {
	_, _, hubA, url := serve(t)
	hubB := replication.NewHub(host.Wrap(blocks.NewArena(ba.Options{Logger: utils.Discard}), ""), replication.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Dial(ctx, url, hubB, utils.Discard)
	}()
	assert.Eventually(t, func() bool { return hubA.Len() == 1 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end")
	}
	assert.Eventually(t, func() bool { return hubA.Len() == 0 }, 5*time.Second, 5*time.Millisecond)
}

func TestDial_Refused(t *testing.T) {
	hub := replication.NewHub(host.Wrap(blocks.NewArena(ba.Options{Logger: utils.Discard}), ""), replication.Options{})
	err := Dial(context.Background(), "ws://127.0.0.1:1/", hub, utils.Discard)
	assert.Error(t, err)
	assert.Equal(t, 0, hub.Len())
}

func TestHandler_BadFrames(t *testing.T) {
	a, _, hubA, url := serve(t)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.Nil(t, err)
	defer conn.Close()

	require.Nil(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"hello","peer":"raw"}`)))
	require.Nil(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.Nil(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"update","records":[{"id":"zz"}]}`)))
	require.Nil(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"update","records":[{"id":"0000000000000000000000000000abcd","timestamp":5,"kind":"Table","payload":{"name":"Cave"}}]}`)))

	// hello then the snapshot of the server
	for _, want := range []replication.FrameType{replication.FrameHello, replication.FrameSnapshot} {
		_, data, err := conn.ReadMessage()
		require.Nil(t, err)
		f, err := replication.DecodeFrame(data)
		require.Nil(t, err)
		assert.Equal(t, want, f.Type)
	}
	assert.Eventually(t, func() bool { return a.Len() == 3 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, hubA.Len())
}
