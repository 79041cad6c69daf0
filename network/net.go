// Package network carries sync sessions over websockets.
package network

import (
	"context"
	"net/http"

	"github.com/drpcorg/blockarena/replication"
	"github.com/drpcorg/blockarena/utils"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// peers are other arenas, not browsers
	CheckOrigin: func(r *http.Request) bool { return true },
}

type handler struct {
	hub *replication.Hub
	log utils.Logger
}

// Handler accepts websocket peers and runs a hub session for each one.
func Handler(hub *replication.Hub, log utils.Logger) http.Handler {
	return &handler{hub: hub, log: log}
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("net: upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	name := "ws://" + conn.RemoteAddr().String()
	ctx := utils.WithDefaultArgs(r.Context(), "peer", name)
	h.keep(ctx, name, conn)
}

func (h *handler) keep(ctx context.Context, name string, conn *websocket.Conn) error {
	s := h.hub.Open(name)
	defer h.hub.Remove(s)
	h.log.InfoCtx(ctx, "net: peer connected")
	err := NewPeer(conn, s, h.log).Keep(ctx)
	if err != nil {
		h.log.WarnCtx(ctx, "net: peer dropped", "err", err)
	} else {
		h.log.InfoCtx(ctx, "net: peer left")
	}
	return err
}

// Dial connects to a peer at url and runs a hub session until it ends.
func Dial(ctx context.Context, url string, hub *replication.Hub, log utils.Logger) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return errors.Wrapf(err, "dial %s", url)
	}
	h := &handler{hub: hub, log: log}
	return h.keep(utils.WithDefaultArgs(ctx, "peer", url), url, conn)
}
