// Package replication runs sync sessions between arena replicas.
package replication

import (
	"context"
	"io"
	"sync"
	"time"

	ba "github.com/drpcorg/blockarena"
	"github.com/drpcorg/blockarena/arena_errors"
	"github.com/drpcorg/blockarena/host"
	"github.com/drpcorg/blockarena/protocol"
	"github.com/drpcorg/blockarena/utils"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

var FrameCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "blockarena",
	Subsystem: "sync",
	Name:      "frames",
	Help:      "Sync frames by direction and type",
}, []string{"direction", "type"})

var DroppedFrames = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "blockarena",
	Subsystem: "sync",
	Name:      "dropped_frames",
	Help:      "Incoming frames that could not be decoded or came out of order",
})

func Collectors() []prometheus.Collector {
	return []prometheus.Collector{FrameCount, DroppedFrames}
}

type SyncMode byte

const (
	SyncRead   SyncMode = 1
	SyncWrite  SyncMode = 2
	SyncLive   SyncMode = 4
	SyncRW     SyncMode = SyncRead | SyncWrite
	SyncRL     SyncMode = SyncRead | SyncLive
	SyncRWLive SyncMode = SyncRead | SyncWrite | SyncLive
)

type SyncState int

const (
	SendHello SyncState = iota
	SendSnapshot
	SendLive
	SendBye
	SendNone
)

var syncStateNames = []string{"SendHello", "SendSnapshot", "SendLive", "SendBye", "SendNone"}

func (s SyncState) String() string {
	if s < 0 || int(s) >= len(syncStateNames) {
		return "SyncState?"
	}
	return syncStateNames[s]
}

// Broadcaster forwards records a session merged to the other sessions.
type Broadcaster interface {
	Broadcast(ctx context.Context, recs []ba.Record, except string) int
}

const (
	DefaultSnapshotChunk = 512
	DefaultQueueLimit    = 1 << 24
	DefaultWaitUntilNone = time.Second
)

// Syncer is one side of a session with a peer. Feed produces the
// frames to send: a hello, the snapshot of the host, then queued live
// updates and finally a bye. Drain merges whatever the peer sent.
type Syncer struct {
	Name string
	Host host.Host
	Mode SyncMode
	// Relay, if set, gets records from this peer that changed the host.
	Relay Broadcaster

	SnapshotChunk int
	QueueLimit    int
	WaitUntilNone time.Duration

	once       sync.Once
	log        utils.Logger
	peer       string
	feedState  SyncState
	drainState SyncState
	snapshot   []ba.Record
	snapped    bool
	oqueue     *utils.RecordQueue[protocol.Records]
	reason     error

	lock sync.Mutex
	cond sync.Cond
}

func (sync *Syncer) setup() {
	sync.once.Do(func() {
		sync.log = utils.Discard
		if sync.Host != nil && sync.Host.Logger() != nil {
			sync.log = sync.Host.Logger()
		}
		if sync.SnapshotChunk <= 0 {
			sync.SnapshotChunk = DefaultSnapshotChunk
		}
		if sync.QueueLimit <= 0 {
			sync.QueueLimit = DefaultQueueLimit
		}
		if sync.WaitUntilNone <= 0 {
			sync.WaitUntilNone = DefaultWaitUntilNone
		}
		sync.oqueue = utils.NewRecordQueue[protocol.Records](sync.QueueLimit)
		sync.cond.L = &sync.lock
	})
}

// Peer is the source name the peer announced in its hello.
func (sync *Syncer) Peer() string {
	sync.lock.Lock()
	defer sync.lock.Unlock()
	return sync.peer
}

// Close ends the session: the feed says bye as soon as it can.
func (sync *Syncer) Close() error {
	return sync.CloseWith(nil)
}

func (sync *Syncer) CloseWith(reason error) error {
	sync.setup()
	if sync.Host == nil {
		return utils.ErrClosed
	}
	sync.lock.Lock()
	if sync.reason == nil {
		sync.reason = reason
	}
	if sync.feedState < SendBye {
		sync.feedState = SendBye
	}
	sync.lock.Unlock()
	_ = sync.oqueue.Close()
	sync.log.Debug("sync: closing", "name", sync.Name, "reason", reason)
	return nil
}

func (sync *Syncer) frame(f Frame) (protocol.Records, error) {
	raw, err := EncodeFrame(f)
	if err != nil {
		return nil, err
	}
	FrameCount.WithLabelValues("out", string(f.Type)).Inc()
	return protocol.Records{raw}, nil
}

func (sync *Syncer) Feed(ctx context.Context) (recs protocol.Records, err error) {
	sync.setup()
	switch sync.FeedState() {
	case SendHello:
		recs, err = sync.frame(Frame{Type: FrameHello, Peer: sync.Host.Source(), Mode: sync.Mode})
		if sync.Mode&SyncWrite != 0 {
			sync.SetFeedState(SendSnapshot)
		} else {
			sync.snapshotDone()
		}

	case SendSnapshot:
		if !sync.snapped {
			sync.snapshot = sync.Host.PackAll(ba.OnlyID)
			sync.snapped = true
		}
		n := min(len(sync.snapshot), sync.SnapshotChunk)
		recs, err = sync.frame(Frame{Type: FrameSnapshot, Records: sync.snapshot[:n]})
		sync.snapshot = sync.snapshot[n:]
		if len(sync.snapshot) == 0 {
			sync.snapshot = nil
			sync.snapshotDone()
		}

	case SendLive:
		recs, err = sync.oqueue.Feed(ctx)
		if err == utils.ErrClosed {
			sync.SetFeedState(SendBye)
			err = nil
		}

	case SendBye:
		reason := "closing"
		sync.lock.Lock()
		if sync.reason != nil {
			reason = sync.reason.Error()
		}
		sync.lock.Unlock()
		recs, err = sync.frame(Frame{Type: FrameBye, Reason: reason})
		sync.SetFeedState(SendNone)

	case SendNone:
		timer := time.AfterFunc(sync.WaitUntilNone, func() {
			sync.SetDrainState(SendNone)
		})
		stop := context.AfterFunc(ctx, func() {
			sync.SetDrainState(SendNone)
		})
		sync.WaitDrainState(SendNone)
		timer.Stop()
		stop()
		err = io.EOF
	}
	return
}

func (sync *Syncer) snapshotDone() {
	if sync.Mode&SyncLive != 0 && sync.DrainState() != SendNone {
		sync.SetFeedState(SendLive)
	} else {
		sync.SetFeedState(SendBye)
	}
}

// enqueue schedules an encoded update frame for a live session.
func (sync *Syncer) enqueue(ctx context.Context, raw []byte) error {
	sync.setup()
	if sync.Mode&SyncLive == 0 {
		return nil
	}
	return sync.oqueue.Drain(ctx, protocol.Records{raw})
}

func (sync *Syncer) FeedState() SyncState {
	sync.lock.Lock()
	defer sync.lock.Unlock()
	return sync.feedState
}

func (sync *Syncer) DrainState() SyncState {
	sync.lock.Lock()
	defer sync.lock.Unlock()
	return sync.drainState
}

func (sync *Syncer) SetFeedState(state SyncState) {
	sync.setup()
	sync.log.Debug("sync: feed state", "name", sync.Name, "state", state.String())
	sync.lock.Lock()
	if sync.feedState < SendBye || state > sync.feedState {
		sync.feedState = state
	}
	sync.lock.Unlock()
}

func (sync *Syncer) SetDrainState(state SyncState) {
	sync.setup()
	sync.log.Debug("sync: drain state", "name", sync.Name, "state", state.String())
	sync.lock.Lock()
	if sync.drainState < state {
		sync.drainState = state
	}
	sync.cond.Broadcast()
	sync.lock.Unlock()
}

func (sync *Syncer) WaitDrainState(state SyncState) (ds SyncState) {
	sync.setup()
	sync.lock.Lock()
	for sync.drainState < state {
		sync.cond.Wait()
	}
	ds = sync.drainState
	sync.lock.Unlock()
	return
}

// Drain decodes and applies incoming frames. Frames that do not decode
// or arrive out of order are logged and dropped; the error returned is
// the one of the host merge, if any.
func (sync *Syncer) Drain(ctx context.Context, recs protocol.Records) (err error) {
	sync.setup()
	for _, raw := range recs {
		if sync.DrainState() == SendNone {
			return utils.ErrClosed
		}
		f, ferr := DecodeFrame(raw)
		if ferr == nil {
			ferr = sync.drainFrame(ctx, f)
		}
		if errors.Is(ferr, arena_errors.ErrBadFrame) {
			DroppedFrames.Inc()
			sync.log.WarnCtx(ctx, "sync: frame dropped", "name", sync.Name, "err", ferr)
			continue
		}
		if ferr != nil {
			sync.lock.Lock()
			sync.reason = ferr
			sync.lock.Unlock()
			return ferr
		}
	}
	return nil
}

func (sync *Syncer) drainFrame(ctx context.Context, f Frame) error {
	FrameCount.WithLabelValues("in", string(f.Type)).Inc()
	state := sync.DrainState()
	switch f.Type {
	case FrameHello:
		if state != SendHello {
			return errors.Wrap(arena_errors.ErrBadFrame, "repeated hello")
		}
		sync.lock.Lock()
		sync.peer = f.Peer
		sync.lock.Unlock()
		sync.log.InfoCtx(ctx, "sync: peer", "name", sync.Name, "peer", f.Peer, "mode", f.Mode)
		sync.SetDrainState(SendSnapshot)

	case FrameSnapshot, FrameUpdate:
		if state == SendHello {
			return errors.Wrapf(arena_errors.ErrBadFrame, "%s before hello", f.Type)
		}
		if f.Type == FrameUpdate {
			sync.SetDrainState(SendLive)
		}
		if sync.Mode&SyncRead == 0 || len(f.Records) == 0 {
			return nil
		}
		stats, err := sync.Host.Merge(ctx, f.Records)
		if err != nil {
			return err
		}
		if stats.Applied > 0 && sync.Relay != nil {
			sync.Relay.Broadcast(ctx, f.Records, sync.Name)
		}

	case FrameBye:
		sync.log.DebugCtx(ctx, "sync: peer left", "name", sync.Name, "reason", f.Reason)
		sync.SetDrainState(SendNone)
		// answer the bye unless a snapshot is still going out
		if sync.FeedState() == SendLive {
			_ = sync.CloseWith(nil)
		}
	}
	return nil
}
