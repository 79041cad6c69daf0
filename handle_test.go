package blockarena

import (
	"math"
	"testing"

	"github.com/drpcorg/blockarena/arena_errors"
	"github.com/drpcorg/blockarena/u128"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHandle_SeesMerge(t *testing.T) {
	a, _ := newTestArena()
	h := Insert(a, &note{Text: "local"})
	defer h.Release()

	assert.True(t, a.Assign(h.ID(), 9000, &note{Text: "remote"}))

	text, ok := MapHandle(h, func(n *note) string { return n.Text })
	assert.True(t, ok)
	assert.Equal(t, "remote", text)
}

func TestHandle_UpdateRestamps(t *testing.T) {
	a, clock := newTestArena()
	h := Insert(a, &note{Text: "a"})

	// frozen clock: each edit still moves the timestamp forward
	for i := 1; i <= 3; i++ {
		assert.Nil(t, h.Update(func(n *note) { n.Text += "!" }))
		ts, _ := a.TimestampOf(h.ID())
		assert.Equal(t, Timestamp(1000+i), ts)
	}
	clock.now = 5000
	assert.Nil(t, h.Update(func(n *note) { n.Text = "b" }))
	ts, _ := a.TimestampOf(h.ID())
	assert.Equal(t, Timestamp(5000), ts)

	// a merged record from the future still gets overtaken locally
	a.Assign(h.ID(), 8000, &note{Text: "future"})
	assert.Nil(t, h.Update(func(n *note) { n.Text = "after" }))
	ts, _ = a.TimestampOf(h.ID())
	assert.Equal(t, Timestamp(8001), ts)
	assert.True(t, a.Now() >= 8001)
}

func TestHandle_Reentrant(t *testing.T) {
	a, _ := newTestArena()
	h := Insert(a, &note{Text: "a"})
	reentries := testutil.ToFloat64(UpdateCount.WithLabelValues(resultReentry))

	var inner error
	var innerRead bool
	err := h.Update(func(n *note) {
		n.Text = "outer"
		inner = h.Clone().Update(func(n *note) { n.Text = "inner" })
		_, innerRead = Get[*note](a, h.ID())
	})
	assert.Nil(t, err)
	assert.ErrorIs(t, inner, arena_errors.ErrReentrantUpdate)
	assert.False(t, innerRead)
	assert.Equal(t, reentries+1, testutil.ToFloat64(UpdateCount.WithLabelValues(resultReentry)))

	n, _ := Get[*note](a, h.ID())
	assert.Equal(t, "outer", n.Text)
}

func TestHandle_UpdateWhileViewing(t *testing.T) {
	a, _ := newTestArena()
	h := Insert(a, &note{Text: "a"})

	var err error
	ok := h.View(func(n *note) {
		err = h.Update(func(n *note) { n.Text = "b" })
	})
	assert.True(t, ok)
	assert.ErrorIs(t, err, arena_errors.ErrBorrowed)

	// nested reads are fine
	nested := false
	h.View(func(*note) {
		nested = h.View(func(*note) {})
	})
	assert.True(t, nested)
}

func TestHandle_ReplacedDuringUpdate(t *testing.T) {
	a, _ := newTestArena()
	h := Insert(a, &note{Text: "a"})

	err := h.Update(func(n *note) {
		n.Text = "lost edit"
		assert.True(t, a.Assign(h.ID(), 9000, &note{Text: "merged"}))
	})
	assert.ErrorIs(t, err, arena_errors.ErrReplaced)

	n, _ := Get[*note](a, h.ID())
	assert.Equal(t, "merged", n.Text)
	ts, _ := a.TimestampOf(h.ID())
	assert.Equal(t, Timestamp(9000), ts)
}

func TestHandle_WrongKind(t *testing.T) {
	a, _ := newTestArena()
	id := a.Add(&note{Text: "a"})
	before, _ := a.TimestampOf(id)

	h := HandleOf[*node](a, id)
	assert.False(t, h.IsNone())
	assert.False(t, h.View(func(*node) {}))
	assert.ErrorIs(t, h.Update(func(n *node) {}), arena_errors.ErrWrongKind)

	after, _ := a.TimestampOf(id)
	assert.Equal(t, before, after)
}

func TestHandle_Placeholder(t *testing.T) {
	a, _ := newTestArena()
	id := u128.New()

	h := HandleOf[*note](a, id)
	assert.False(t, h.View(func(*note) {}))
	assert.ErrorIs(t, h.Update(func(*note) {}), arena_errors.ErrObjectUnknown)
	assert.Equal(t, 0, a.Len())
	assert.Equal(t, Kind(""), a.KindOf(id))

	assert.True(t, a.Assign(id, 1, &note{Text: "arrived"}))
	text, ok := MapHandle(h, func(n *note) string { return n.Text })
	assert.True(t, ok)
	assert.Equal(t, "arrived", text)
}

func TestHandle_Zero(t *testing.T) {
	var h Handle[*note]
	assert.True(t, h.IsNone())
	assert.False(t, h.View(func(*note) {}))
	assert.ErrorIs(t, h.Update(func(*note) {}), arena_errors.ErrObjectUnknown)
	assert.Equal(t, 0, h.Shares())
	h.Release()

	a, _ := newTestArena()
	assert.True(t, HandleOf[*note](a, u128.None).IsNone())
}

func TestRef_Weak(t *testing.T) {
	a, _ := newTestArena()
	id := a.Add(&note{Text: "a"})
	r := RefOf[*note](id)

	text, ok := MapRef(r, a, func(n *note) string { return n.Text })
	assert.True(t, ok)
	assert.Equal(t, "a", text)

	_, ok = RefOf[*node](id).Handle(a)
	assert.False(t, ok)

	// weak refs do not hold the slot
	assert.True(t, a.Evict(id))
	assert.False(t, r.View(a, func(*note) {}))
	_, ok = r.Handle(a)
	assert.False(t, ok)

	a.Assign(id, 2000, &note{Text: "back"})
	h, ok := r.Handle(a)
	assert.True(t, ok)
	assert.Equal(t, 1, h.Shares())
	assert.True(t, h.Ref() == r)
	assert.False(t, a.Evict(id))
}

func TestHandle_UpdateAtMaxTimestamp(t *testing.T) {
	a, _ := newTestArena()
	h := HandleOf[*note](a, u128.New())
	defer h.Release()
	assert.True(t, a.Assign(h.ID(), math.MaxInt64-1, &note{Text: "almost"}))
	assert.Nil(t, h.Update(func(n *note) { n.Text = "last" }))
	ts, _ := a.TimestampOf(h.ID())
	assert.Equal(t, Timestamp(math.MaxInt64), ts)

	assert.ErrorIs(t, h.Update(func(n *note) { n.Text = "never" }), arena_errors.ErrTimestampMax)
	ts, _ = a.TimestampOf(h.ID())
	assert.Equal(t, Timestamp(math.MaxInt64), ts)
	text, _ := MapHandle(h, func(n *note) string { return n.Text })
	assert.Equal(t, "last", text)
}
