package blockarena

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/drpcorg/blockarena/arena_errors"
	"github.com/drpcorg/blockarena/u128"
)

// cell is the storage slot of one id. A cell with an empty kind is a
// placeholder: something referenced the id before its block arrived.
// Handles keep pointers to cells, so a merge fills or replaces the
// payload in place and every handle sees it on the next access.
//
// Borrowing follows the RefCell discipline without blocking: any
// number of readers, or a single writer, never both.
type cell struct {
	lock      sync.Mutex
	id        u128.ID
	timestamp Timestamp
	kind      Kind
	payload   Block
	gen       uint64
	readers   int
	busy      bool

	shares atomic.Int32
}

var errStale = errors.New("arena: stale update")

func newCell(id u128.ID) *cell {
	return &cell{id: id}
}

func (c *cell) placeholder() bool {
	return c.kind == ""
}

// put replaces the record if it is absent or strictly older than ts.
// The replaced payload is released.
func (c *cell) put(ts Timestamp, payload Block) bool {
	c.lock.Lock()
	if !c.placeholder() && !(c.timestamp < ts) {
		c.lock.Unlock()
		return false
	}
	old := c.payload
	c.timestamp = ts
	c.kind = payload.Kind()
	c.payload = payload
	c.gen++
	c.lock.Unlock()
	if old != nil {
		release(old)
	}
	return true
}

func (c *cell) stamp() (ts Timestamp, kind Kind, ok bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.placeholder() {
		return 0, "", false
	}
	return c.timestamp, c.kind, true
}

// peek returns the payload without borrowing it.
func (c *cell) peek() (Block, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.placeholder() || c.busy {
		return nil, false
	}
	return c.payload, true
}

// borrow takes a shared read borrow; pair with unborrow.
func (c *cell) borrow() (payload Block, ts Timestamp, ok bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.placeholder() || c.busy {
		return nil, 0, false
	}
	c.readers++
	return c.payload, c.timestamp, true
}

func (c *cell) unborrow() {
	c.lock.Lock()
	c.readers--
	c.lock.Unlock()
}

// mutate runs apply under the exclusive borrow. next maps the stored
// timestamp to the new one, or refuses the mutation. If a merge swaps
// the payload while apply runs, the edit is dropped: the merged value
// is newer by construction.
func (c *cell) mutate(next func(old Timestamp) (Timestamp, bool), apply func(Block) bool) (err error) {
	c.lock.Lock()
	switch {
	case c.placeholder():
		err = arena_errors.ErrObjectUnknown
	case c.busy:
		err = arena_errors.ErrReentrantUpdate
	case c.readers > 0:
		err = arena_errors.ErrBorrowed
	}
	if err != nil {
		c.lock.Unlock()
		return err
	}
	ts, ok := next(c.timestamp)
	if !ok {
		c.lock.Unlock()
		return errStale
	}
	payload, gen := c.payload, c.gen
	c.busy = true
	c.lock.Unlock()

	applied := false
	defer func() {
		c.lock.Lock()
		defer c.lock.Unlock()
		c.busy = false
		switch {
		case c.gen != gen:
			err = arena_errors.ErrReplaced
		case !applied:
			err = arena_errors.ErrWrongKind
		case ts > c.timestamp:
			c.timestamp = ts
		}
	}()
	applied = apply(payload)
	return nil
}
