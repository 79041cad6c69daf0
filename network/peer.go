package network

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/drpcorg/blockarena/protocol"
	"github.com/drpcorg/blockarena/utils"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

var TransferredBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "blockarena",
	Subsystem: "net",
	Name:      "bytes",
	Help:      "Websocket payload bytes by direction",
}, []string{"direction"})

func Collectors() []prometheus.Collector {
	return []prometheus.Collector{TransferredBytes}
}

const (
	DefaultWriteTimeout = 10 * time.Second
	// MaxFrameSize caps one incoming websocket message.
	MaxFrameSize = 64 << 20
)

// Peer pumps one websocket connection through a sync session: every
// record the session feeds goes out as one text message, every text
// message read is drained into the session.
type Peer struct {
	conn         *websocket.Conn
	inout        protocol.FeedDrainCloser
	log          utils.Logger
	writeTimeout time.Duration
	closed       atomic.Bool
}

func NewPeer(conn *websocket.Conn, inout protocol.FeedDrainCloser, log utils.Logger) *Peer {
	conn.SetReadLimit(MaxFrameSize)
	return &Peer{
		conn:         conn,
		inout:        inout,
		log:          log,
		writeTimeout: DefaultWriteTimeout,
	}
}

func (p *Peer) keepRead(ctx context.Context) error {
	for ctx.Err() == nil {
		mt, data, err := p.conn.ReadMessage()
		if err != nil {
			if p.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return errors.Wrap(err, "read")
		}
		if mt != websocket.TextMessage {
			p.log.WarnCtx(ctx, "net: non-text message ignored", "type", mt)
			continue
		}
		TransferredBytes.WithLabelValues("in").Add(float64(len(data)))
		if err = p.inout.Drain(ctx, protocol.Records{data}); err != nil {
			return err
		}
	}
	return nil
}

// keepWrite ends with nil once the session fed its EOF.
func (p *Peer) keepWrite(ctx context.Context) error {
	for {
		recs, err := p.inout.Feed(ctx)
		for _, rec := range recs {
			if werr := p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout)); werr != nil {
				return werr
			}
			if werr := p.conn.WriteMessage(websocket.TextMessage, rec); werr != nil {
				return errors.Wrap(werr, "write")
			}
		}
		TransferredBytes.WithLabelValues("out").Add(float64(recs.TotalLen()))
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
	}
}

// Keep runs the connection until the session ends, the peer goes
// away or ctx is done. The connection is closed on return.
func (p *Peer) Keep(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	readErr := make(chan error, 1)
	go func() {
		readErr <- p.keepRead(ctx)
		cancel()
	}()

	werr := p.keepWrite(ctx)
	p.Close()
	rerr := <-readErr
	_ = p.inout.Close()

	if errors.Is(werr, context.Canceled) && parent.Err() == nil {
		// the read side ended first
		werr = nil
	}
	if werr != nil {
		return werr
	}
	return rerr
}

// Close says goodbye at the websocket level and drops the connection.
func (p *Peer) Close() {
	if p.closed.Swap(true) {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = p.conn.Close()
}
