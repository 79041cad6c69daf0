package replication

import (
	"context"
	"io"
	"testing"
	"time"

	ba "github.com/drpcorg/blockarena"
	"github.com/drpcorg/blockarena/host"
	"github.com/drpcorg/blockarena/protocol"
	"github.com/drpcorg/blockarena/u128"
	"github.com/drpcorg/blockarena/utils"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func rec(ts ba.Timestamp) ba.Record {
	return ba.Record{
		ID:        u128.New(),
		Timestamp: ts,
		Kind:      "ChatChannel",
		Payload:   protocol.Object{"name": "main", "messages": protocol.Array{}},
	}
}

func mockHost(t *testing.T) *host.MockHost {
	ctrl := gomock.NewController(t)
	h := host.NewMockHost(ctrl)
	h.EXPECT().Logger().Return(utils.Discard).AnyTimes()
	h.EXPECT().Source().Return("local").AnyTimes()
	return h
}

func feedFrame(t *testing.T, s *Syncer) Frame {
	recs, err := s.Feed(context.Background())
	require.Nil(t, err)
	require.Len(t, recs, 1)
	f, err := DecodeFrame(recs[0])
	require.Nil(t, err)
	return f
}

func encode(t *testing.T, f Frame) []byte {
	raw, err := EncodeFrame(f)
	require.Nil(t, err)
	return raw
}

type relayed struct {
	recs   []ba.Record
	except string
}

func (r *relayed) Broadcast(ctx context.Context, recs []ba.Record, except string) int {
	r.recs = append(r.recs, recs...)
	r.except = except
	return 1
}

func TestSyncState_String(t *testing.T) {
	assert.Equal(t, "SendSnapshot", SendSnapshot.String())
	assert.Equal(t, "SendNone", SendNone.String())
	assert.Equal(t, "SyncState?", SyncState(42).String())
}

func TestDecodeFrame(t *testing.T) {
	f, err := DecodeFrame([]byte(`{"type":"hello","peer":"p","mode":3}`))
	require.Nil(t, err)
	assert.Equal(t, Frame{Type: FrameHello, Peer: "p", Mode: SyncRW}, f)

	for _, raw := range []string{`{`, `{"type":"boom"}`, `{"type":"hello","mode":9}`, `[]`} {
		_, err = DecodeFrame([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestSyncer_FeedSnapshot(t *testing.T) {
	h := mockHost(t)
	snapshot := []ba.Record{rec(1), rec(2), rec(3)}
	h.EXPECT().PackAll(ba.OnlyID).Return(snapshot).Times(1)

	s := &Syncer{Name: "peer", Host: h, Mode: SyncRW, SnapshotChunk: 2, WaitUntilNone: time.Millisecond}
	hello := feedFrame(t, s)
	assert.Equal(t, FrameHello, hello.Type)
	assert.Equal(t, "local", hello.Peer)
	assert.Equal(t, SyncRW, hello.Mode)

	first := feedFrame(t, s)
	assert.Equal(t, FrameSnapshot, first.Type)
	assert.Len(t, first.Records, 2)
	second := feedFrame(t, s)
	assert.Len(t, second.Records, 1)
	assert.Equal(t, snapshot[2].ID, second.Records[0].ID)

	bye := feedFrame(t, s)
	assert.Equal(t, FrameBye, bye.Type)
	assert.Equal(t, "closing", bye.Reason)

	_, err := s.Feed(context.Background())
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, SendNone, s.FeedState())
}

func TestSyncer_FeedReadOnly(t *testing.T) {
	h := mockHost(t)
	s := &Syncer{Name: "peer", Host: h, Mode: SyncRL}
	assert.Equal(t, FrameHello, feedFrame(t, s).Type)
	assert.Equal(t, SendLive, s.FeedState())

	raw := encode(t, Frame{Type: FrameUpdate, Records: []ba.Record{rec(5)}})
	require.Nil(t, s.enqueue(context.Background(), raw))
	recs, err := s.Feed(context.Background())
	require.Nil(t, err)
	assert.Equal(t, protocol.Records{raw}, recs)

	require.Nil(t, s.CloseWith(errReplaced))
	bye := feedFrame(t, s)
	assert.Equal(t, FrameBye, bye.Type)
	assert.Equal(t, errReplaced.Error(), bye.Reason)
}

func TestSyncer_CloseBeforeHello(t *testing.T) {
	s := &Syncer{Name: "peer", Host: mockHost(t), Mode: SyncRWLive}
	require.Nil(t, s.Close())
	assert.Equal(t, FrameBye, feedFrame(t, s).Type)
	assert.Equal(t, utils.ErrClosed, (&Syncer{}).Close())
}

func TestSyncer_Drain(t *testing.T) {
	h := mockHost(t)
	ctx := context.Background()
	recs := []ba.Record{rec(10), rec(11)}
	h.EXPECT().Merge(gomock.Any(), recs).Return(ba.MergeStats{Applied: 2}, nil).Times(1)
	stale := []ba.Record{rec(1)}
	h.EXPECT().Merge(gomock.Any(), stale).Return(ba.MergeStats{Stale: 1}, nil).Times(1)

	relay := &relayed{}
	s := &Syncer{Name: "peer", Host: h, Mode: SyncRWLive, Relay: relay}
	dropped := testutil.ToFloat64(DroppedFrames)

	err := s.Drain(ctx, protocol.Records{
		encode(t, Frame{Type: FrameSnapshot, Records: recs}),
		encode(t, Frame{Type: FrameHello, Peer: "remote", Mode: SyncRW}),
		[]byte("{junk"),
		encode(t, Frame{Type: FrameHello, Peer: "again"}),
		encode(t, Frame{Type: FrameSnapshot, Records: recs}),
	})
	require.Nil(t, err)
	assert.Equal(t, dropped+3, testutil.ToFloat64(DroppedFrames))
	assert.Equal(t, "remote", s.Peer())
	assert.Equal(t, SendSnapshot, s.DrainState())
	assert.Equal(t, recs, relay.recs)
	assert.Equal(t, "peer", relay.except)

	require.Nil(t, s.Drain(ctx, protocol.Records{encode(t, Frame{Type: FrameUpdate, Records: stale})}))
	assert.Equal(t, SendLive, s.DrainState())
	assert.Len(t, relay.recs, 2)

	require.Nil(t, s.Drain(ctx, protocol.Records{encode(t, Frame{Type: FrameBye, Reason: "done"})}))
	assert.Equal(t, SendNone, s.DrainState())
	assert.Equal(t, utils.ErrClosed, s.Drain(ctx, protocol.Records{encode(t, Frame{Type: FrameUpdate})}))
}

func TestSyncer_DrainWriteOnly(t *testing.T) {
	s := &Syncer{Name: "peer", Host: mockHost(t), Mode: SyncWrite}
	err := s.Drain(context.Background(), protocol.Records{
		encode(t, Frame{Type: FrameHello, Peer: "remote"}),
		encode(t, Frame{Type: FrameUpdate, Records: []ba.Record{rec(1)}}),
	})
	assert.Nil(t, err)
}

func TestSyncer_DrainMergeError(t *testing.T) {
	h := mockHost(t)
	h.EXPECT().Merge(gomock.Any(), gomock.Any()).Return(ba.MergeStats{}, context.Canceled)
	s := &Syncer{Name: "peer", Host: h, Mode: SyncRW}
	err := s.Drain(context.Background(), protocol.Records{
		encode(t, Frame{Type: FrameHello, Peer: "remote"}),
		encode(t, Frame{Type: FrameSnapshot, Records: []ba.Record{rec(1)}}),
	})
	assert.ErrorIs(t, err, context.Canceled)
}
