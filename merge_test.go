package blockarena

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/drpcorg/blockarena/protocol"
	"github.com/drpcorg/blockarena/u128"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_DropsMalformed(t *testing.T) {
	a, _ := newTestArena()
	good1, good2 := u128.New(), u128.New()
	failures := testutil.ToFloat64(UnpackFailures.WithLabelValues("Dragon"))

	recs := []Record{
		{ID: good1, Timestamp: 10, Kind: KindNote, Payload: protocol.Object{"text": "one"}},
		{ID: u128.New(), Timestamp: 10, Kind: KindNote, Payload: protocol.Object{"txet": "typo"}},
		{ID: u128.New(), Timestamp: 10, Kind: "Dragon", Payload: protocol.Object{}},
		{ID: u128.None, Timestamp: 10, Kind: KindNote, Payload: protocol.Object{"text": "nobody"}},
		{ID: u128.New(), Timestamp: 10, Kind: KindNode, Payload: "not an object"},
		{ID: good2, Timestamp: 10, Kind: KindNote, Payload: protocol.Object{"text": "two"}},
	}
	stats, err := a.Merge(context.Background(), recs)
	require.Nil(t, err)
	assert.Equal(t, MergeStats{Applied: 2, Dropped: 4}, stats)
	assert.Equal(t, 6, stats.Total())
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, failures+1, testutil.ToFloat64(UnpackFailures.WithLabelValues("Dragon")))

	for _, id := range []u128.ID{good1, good2} {
		_, ok := Get[*note](a, id)
		assert.True(t, ok)
	}
}

func TestMerge_Twice(t *testing.T) {
	a, _ := newTestArena()
	chain(t, a, 4)
	recs := a.PackAll(OnlyID)

	b, _ := newTestArena()
	first, err := b.Merge(context.Background(), recs)
	require.Nil(t, err)
	state := b.PackAll(Recursive)
	second, err := b.Merge(context.Background(), recs)
	require.Nil(t, err)

	assert.Equal(t, MergeStats{Applied: 4}, first)
	assert.Equal(t, MergeStats{Stale: 4}, second)
	assert.Equal(t, state, b.PackAll(Recursive))
}

func TestMerge_Cancelled(t *testing.T) {
	a, _ := newTestArena()
	chain(t, a, 3)
	recs := a.PackAll(OnlyID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b, _ := newTestArena()
	stats, err := b.Merge(ctx, recs)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, stats.Total())
	assert.Equal(t, 0, b.Len())
}

func TestMerge_JSON(t *testing.T) {
	a, _ := newTestArena()
	id := u128.New()
	data, err := json.Marshal([]any{
		Record{ID: id, Timestamp: 42, Kind: KindNote, Payload: protocol.Object{"text": "wire"}},
		map[string]any{"id": "not hex", "timestamp": 1},
		"garbage",
	})
	require.Nil(t, err)

	stats, err := a.MergeJSON(context.Background(), data)
	require.Nil(t, err)
	assert.Equal(t, MergeStats{Applied: 1, Dropped: 2}, stats)
	n, ok := Get[*note](a, id)
	require.True(t, ok)
	assert.Equal(t, "wire", n.Text)
	ts, _ := a.TimestampOf(id)
	assert.Equal(t, Timestamp(42), ts)

	_, err = a.MergeJSON(context.Background(), []byte(`{"not": "a batch"}`))
	assert.NotNil(t, err)
}

func TestMerge_StatsAdd(t *testing.T) {
	s := MergeStats{Applied: 1}
	s.Add(MergeStats{Stale: 2, Dropped: 3})
	assert.Equal(t, MergeStats{Applied: 1, Stale: 2, Dropped: 3}, s)
}
