package blockarena

import (
	"iter"
	"log/slog"
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/drpcorg/blockarena/arena_errors"
	"github.com/drpcorg/blockarena/protocol"
	"github.com/drpcorg/blockarena/u128"
	"github.com/drpcorg/blockarena/utils"
)

// Timestamp is wall-clock milliseconds. The record with the larger
// timestamp wins a merge entirely.
type Timestamp int64

// Kind is the type tag a block is stored and transmitted under.
type Kind string

// Block is anything the arena can store: it knows its kind, packs
// itself into a wire value and reads itself back from one.
// Implementations are pointer types; Unpack is called on a blank
// value made by the arena's kind table.
type Block interface {
	Kind() Kind
	Pack(p *Packer) protocol.Value
	Unpack(v protocol.Value, u *Unpacker) error
}

// Releaser is implemented by blocks that hold handles. The arena
// calls Release when it discards a payload: a stale or malformed
// merge, a payload replaced by a newer record, an evicted slot.
// Release must leave the block holding no shares.
type Releaser interface {
	Release()
}

func release(b Block) {
	if r, ok := b.(Releaser); ok {
		r.Release()
	}
}

// Kinds maps a type tag to a constructor of a blank block.
type Kinds map[Kind]func() Block

type Options struct {
	Kinds Kinds
	// Clock returns wall-clock milliseconds.
	Clock func() Timestamp
	// MaxPackDepth caps nested expansion at Recursive depth.
	MaxPackDepth int
	Logger       utils.Logger
}

func WallClock() Timestamp {
	return Timestamp(time.Now().UnixMilli())
}

func (o *Options) SetDefaults() {
	if o.Kinds == nil {
		o.Kinds = Kinds{}
	}
	if o.Clock == nil {
		o.Clock = WallClock
	}
	if o.MaxPackDepth == 0 {
		o.MaxPackDepth = 32
	}
	if o.Logger == nil {
		o.Logger = utils.NewDefaultLogger(slog.LevelError)
	}
}

// Arena is the heterogeneous id -> (timestamp, kind, payload) map.
// Reads fail softly; the only mutating entry points are Add, Assign,
// Update and handle updates, each a single atomic step.
type Arena struct {
	lock  sync.RWMutex
	cells map[u128.ID]*cell

	clock sync.Mutex
	last  Timestamp

	opts Options
	log  utils.Logger
}

func New(opts Options) *Arena {
	opts.SetDefaults()
	opts.Kinds = maps.Clone(opts.Kinds)
	return &Arena{
		cells: make(map[u128.ID]*cell),
		opts:  opts,
		log:   opts.Logger,
	}
}

func (a *Arena) Logger() utils.Logger {
	return a.log
}

// Register adds a kind to the arena's kind table.
func (a *Arena) Register(kind Kind, blank func() Block) {
	a.lock.Lock()
	a.opts.Kinds[kind] = blank
	a.lock.Unlock()
}

// Now is the arena clock: wall time that never goes backwards.
func (a *Arena) Now() Timestamp {
	a.clock.Lock()
	defer a.clock.Unlock()
	t := a.opts.Clock()
	if t < a.last {
		t = a.last
	}
	a.last = t
	return t
}

// restamp is the timestamp of a local edit over a stored one: strictly
// newer, so that peers holding the old record accept the edit. A
// record stamped math.MaxInt64 cannot be superseded.
func (a *Arena) restamp(old Timestamp) (Timestamp, bool) {
	if old == math.MaxInt64 {
		return old, false
	}
	now := a.Now()
	if now <= old {
		now = old + 1
		a.clock.Lock()
		if a.last < now {
			a.last = now
		}
		a.clock.Unlock()
	}
	return now, true
}

func (a *Arena) lookup(id u128.ID) *cell {
	a.lock.RLock()
	c := a.cells[id]
	a.lock.RUnlock()
	return c
}

// slot returns the cell for id, creating a placeholder if needed.
func (a *Arena) slot(id u128.ID) *cell {
	if c := a.lookup(id); c != nil {
		return c
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	c, ok := a.cells[id]
	if !ok {
		c = newCell(id)
		a.cells[id] = c
	}
	return c
}

// Add stores payload under a fresh id stamped with the current time.
func (a *Arena) Add(payload Block) u128.ID {
	if payload == nil {
		return u128.None
	}
	ts := a.Now()
	a.lock.Lock()
	id := u128.New()
	for a.cells[id] != nil {
		id = u128.New()
	}
	c := newCell(id)
	c.put(ts, payload)
	a.cells[id] = c
	a.lock.Unlock()
	AddedCount.Inc()
	return id
}

// Assign is the merge entry point: the record for id is replaced if
// it is absent or strictly older than ts, otherwise nothing happens.
// The arena owns payload either way; a refused one is released.
func (a *Arena) Assign(id u128.ID, ts Timestamp, payload Block) bool {
	if id.IsNone() || payload == nil {
		return false
	}
	applied := a.slot(id).put(ts, payload)
	if applied {
		AssignCount.WithLabelValues(resultApplied).Inc()
	} else {
		release(payload)
		AssignCount.WithLabelValues(resultStale).Inc()
	}
	return applied
}

// Get is a type-checked read. The returned block must be treated as
// read-only; edits go through Update or a Handle.
func Get[T Block](a *Arena, id u128.ID) (ret T, ok bool) {
	c := a.lookup(id)
	if c == nil {
		return
	}
	payload, ok := c.peek()
	if !ok {
		return
	}
	ret, ok = payload.(T)
	return
}

// Update applies a local edit if ts is newer than the stored
// timestamp, keeping ts as the new one.
func Update[T Block](a *Arena, id u128.ID, ts Timestamp, f func(T)) bool {
	c := a.lookup(id)
	if c == nil {
		UpdateCount.WithLabelValues(resultUnknown).Inc()
		return false
	}
	err := c.mutate(
		func(old Timestamp) (Timestamp, bool) { return ts, old < ts },
		func(payload Block) bool {
			t, ok := payload.(T)
			if ok {
				f(t)
			}
			return ok
		})
	a.countUpdate(id, err)
	return err == nil
}

func (a *Arena) countUpdate(id u128.ID, err error) {
	result := resultApplied
	switch err {
	case nil:
	case errStale:
		result = resultStale
	case arena_errors.ErrObjectUnknown:
		result = resultUnknown
	case arena_errors.ErrWrongKind:
		result = resultMismatch
	case arena_errors.ErrBorrowed:
		result = resultBorrowed
	case arena_errors.ErrReplaced:
		result = resultReplaced
	case arena_errors.ErrReentrantUpdate:
		result = resultReentry
		a.log.Error("re-entrant update", "id", id.String())
	}
	UpdateCount.WithLabelValues(result).Inc()
}

// IDs lists the ids of all stored (non-placeholder) blocks in id order.
func (a *Arena) IDs() []u128.ID {
	a.lock.RLock()
	ids := make([]u128.ID, 0, len(a.cells))
	for id, c := range a.cells {
		if _, _, ok := c.stamp(); ok {
			ids = append(ids, id)
		}
	}
	a.lock.RUnlock()
	slices.SortFunc(ids, u128.ID.Compare)
	return ids
}

func (a *Arena) Len() int {
	return len(a.IDs())
}

// All walks every block of type T. Each call re-walks current state.
func All[T Block](a *Arena) iter.Seq2[u128.ID, T] {
	return func(yield func(u128.ID, T) bool) {
		for _, id := range a.IDs() {
			if t, ok := Get[T](a, id); ok && !yield(id, t) {
				return
			}
		}
	}
}

// Listed walks the blocks of type T among ids, in the given order.
func Listed[T Block](a *Arena, ids []u128.ID) iter.Seq2[u128.ID, T] {
	return func(yield func(u128.ID, T) bool) {
		for _, id := range ids {
			if t, ok := Get[T](a, id); ok && !yield(id, t) {
				return
			}
		}
	}
}

// KindOf is the stored tag of id, empty if absent.
func (a *Arena) KindOf(id u128.ID) Kind {
	c := a.lookup(id)
	if c == nil {
		return ""
	}
	_, kind, _ := c.stamp()
	return kind
}

func (a *Arena) TimestampOf(id u128.ID) (Timestamp, bool) {
	c := a.lookup(id)
	if c == nil {
		return 0, false
	}
	ts, _, ok := c.stamp()
	return ts, ok
}

// Evict drops the slot of id. It is the hook for external cleanup,
// the arena never calls it. Slots held by shared handles are kept.
func (a *Arena) Evict(id u128.ID) bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	c, ok := a.cells[id]
	if !ok || c.shares.Load() > 0 {
		return false
	}
	delete(a.cells, id)
	if payload, ok := c.peek(); ok {
		release(payload)
	}
	return true
}
