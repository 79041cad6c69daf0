package replication

import (
	"context"
	"slices"
	"time"

	ba "github.com/drpcorg/blockarena"
	"github.com/drpcorg/blockarena/host"
	"github.com/drpcorg/blockarena/u128"
	"github.com/drpcorg/blockarena/utils"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

var errReplaced = errors.New("session replaced")
var errOverflow = errors.New("outbound queue overflow")

type Options struct {
	Mode          SyncMode
	SnapshotChunk int
	QueueLimit    int
	WaitUntilNone time.Duration
}

func (o *Options) SetDefaults() {
	if o.Mode == 0 {
		o.Mode = SyncRWLive
	}
	if o.SnapshotChunk <= 0 {
		o.SnapshotChunk = DefaultSnapshotChunk
	}
	if o.QueueLimit <= 0 {
		o.QueueLimit = DefaultQueueLimit
	}
	if o.WaitUntilNone <= 0 {
		o.WaitUntilNone = DefaultWaitUntilNone
	}
}

// Hub keeps the sessions of one host by name and fans local changes
// out to them. Records a session merges are relayed to all others.
type Hub struct {
	host     host.Host
	opts     Options
	log      utils.Logger
	sessions *xsync.MapOf[string, *Syncer]
}

func NewHub(h host.Host, opts Options) *Hub {
	opts.SetDefaults()
	log := h.Logger()
	if log == nil {
		log = utils.Discard
	}
	return &Hub{
		host:     h,
		opts:     opts,
		log:      log,
		sessions: xsync.NewMapOf[string, *Syncer](),
	}
}

func (hub *Hub) Host() host.Host {
	return hub.host
}

// Open registers a new session under name. A session already
// registered under that name is closed.
func (hub *Hub) Open(name string) *Syncer {
	s := &Syncer{
		Name:          name,
		Host:          hub.host,
		Mode:          hub.opts.Mode,
		Relay:         hub,
		SnapshotChunk: hub.opts.SnapshotChunk,
		QueueLimit:    hub.opts.QueueLimit,
		WaitUntilNone: hub.opts.WaitUntilNone,
	}
	if old, loaded := hub.sessions.LoadAndStore(name, s); loaded {
		_ = old.CloseWith(errReplaced)
	}
	hub.log.Debug("sync: session open", "name", name)
	return s
}

// Remove closes s and drops it from the hub unless it was replaced.
func (hub *Hub) Remove(s *Syncer) {
	hub.sessions.Compute(s.Name, func(old *Syncer, loaded bool) (*Syncer, bool) {
		return old, !loaded || old == s
	})
	_ = s.Close()
	hub.log.Debug("sync: session removed", "name", s.Name)
}

func (hub *Hub) Session(name string) (*Syncer, bool) {
	return hub.sessions.Load(name)
}

// Sessions lists the registered session names, sorted.
func (hub *Hub) Sessions() []string {
	names := make([]string, 0, hub.sessions.Size())
	hub.sessions.Range(func(name string, _ *Syncer) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}

func (hub *Hub) Len() int {
	return hub.sessions.Size()
}

// Broadcast queues recs as one update frame on every live session but
// except. A session whose queue overflows is closed. Returns the
// number of sessions the frame was queued on.
func (hub *Hub) Broadcast(ctx context.Context, recs []ba.Record, except string) (n int) {
	if len(recs) == 0 {
		return 0
	}
	raw, err := EncodeFrame(Frame{Type: FrameUpdate, Records: recs})
	if err != nil {
		hub.log.ErrorCtx(ctx, "sync: update not encoded", "err", err)
		return 0
	}
	hub.sessions.Range(func(name string, s *Syncer) bool {
		if name == except || s.Mode&SyncLive == 0 {
			return true
		}
		switch err := s.enqueue(ctx, raw); err {
		case nil:
			n++
		case utils.ErrOverflow:
			hub.log.WarnCtx(ctx, "sync: session overflow", "name", name)
			_ = s.CloseWith(errOverflow)
		default:
			hub.log.DebugCtx(ctx, "sync: update not queued", "name", name, "err", err)
		}
		return true
	})
	return n
}

// Publish sends the listed blocks, with their direct children expanded,
// to every live session. Absent ids are skipped.
func (hub *Hub) Publish(ctx context.Context, ids ...u128.ID) int {
	recs := hub.host.PackListed(ids, ba.FirstBlock)
	hub.Broadcast(ctx, recs, "")
	return len(recs)
}

// Close ends every session.
func (hub *Hub) Close() error {
	hub.sessions.Range(func(name string, s *Syncer) bool {
		_ = s.Close()
		hub.sessions.Delete(name)
		return true
	})
	return nil
}
