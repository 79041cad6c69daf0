package blockarena

import (
	"github.com/drpcorg/blockarena/arena_errors"
	"github.com/drpcorg/blockarena/u128"
)

// Handle is a shared reference to the block stored under an id. It
// points at the arena slot itself, so merges that replace the payload
// are visible through it, and while any handle is held the slot
// survives Evict. The zero Handle refers to nothing.
type Handle[T Block] struct {
	id    u128.ID
	c     *cell
	arena *Arena
}

// Ref is a weak reference: just the id. Resolving it needs the arena
// and yields nothing once the block is gone or has another kind.
type Ref[T Block] struct {
	id u128.ID
}

// HandleOf returns a handle to id, inserting a placeholder slot if
// the arena has not seen the id yet.
func HandleOf[T Block](a *Arena, id u128.ID) Handle[T] {
	if id.IsNone() {
		return Handle[T]{}
	}
	c := a.slot(id)
	c.shares.Add(1)
	return Handle[T]{id: id, c: c, arena: a}
}

// Insert adds payload and returns a handle to it.
func Insert[T Block](a *Arena, payload T) Handle[T] {
	return HandleOf[T](a, a.Add(payload))
}

func (h Handle[T]) ID() u128.ID {
	return h.id
}

func (h Handle[T]) IsNone() bool {
	return h.c == nil
}

func (h Handle[T]) Equal(other Handle[T]) bool {
	return h.id == other.id
}

// Clone duplicates the handle, bumping the share count of the slot.
func (h Handle[T]) Clone() Handle[T] {
	if h.c != nil {
		h.c.shares.Add(1)
	}
	return h
}

// Release gives one share back; call it once per handle obtained
// from HandleOf, Insert or Clone.
func (h Handle[T]) Release() {
	if h.c != nil {
		h.c.shares.Add(-1)
	}
}

func (h Handle[T]) Shares() int {
	if h.c == nil {
		return 0
	}
	return int(h.c.shares.Load())
}

// Ref downgrades to a weak reference.
func (h Handle[T]) Ref() Ref[T] {
	return Ref[T]{id: h.id}
}

// View calls f with the block if it is present and of type T.
func (h Handle[T]) View(f func(T)) bool {
	return view(h.c, f)
}

// Update edits the block in place and stamps it as a fresh local
// write. A nested Update of the same block inside f fails with
// ErrReentrantUpdate, an Update inside a View with ErrBorrowed. A
// block whose timestamp is already at the maximum is left untouched
// and ErrTimestampMax returned.
func (h Handle[T]) Update(f func(T)) error {
	if h.c == nil {
		return arena_errors.ErrObjectUnknown
	}
	err := h.c.mutate(
		h.arena.restamp,
		func(payload Block) bool {
			t, ok := payload.(T)
			if ok {
				f(t)
			}
			return ok
		})
	h.arena.countUpdate(h.id, err)
	if err == errStale {
		return arena_errors.ErrTimestampMax
	}
	return err
}

// MapHandle reads through a handle; ok is false if the block is
// absent, of another type or being mutated.
func MapHandle[T Block, R any](h Handle[T], f func(T) R) (ret R, ok bool) {
	ok = h.View(func(t T) { ret = f(t) })
	return
}

func RefOf[T Block](id u128.ID) Ref[T] {
	return Ref[T]{id: id}
}

func (r Ref[T]) ID() u128.ID {
	return r.id
}

func (r Ref[T]) IsNone() bool {
	return r.id.IsNone()
}

func (r Ref[T]) View(a *Arena, f func(T)) bool {
	return view(a.lookup(r.id), f)
}

// Handle upgrades to a shared handle if the block is still there.
func (r Ref[T]) Handle(a *Arena) (Handle[T], bool) {
	c := a.lookup(r.id)
	if c == nil {
		return Handle[T]{}, false
	}
	if payload, ok := c.peek(); !ok {
		return Handle[T]{}, false
	} else if _, ok = payload.(T); !ok {
		return Handle[T]{}, false
	}
	c.shares.Add(1)
	return Handle[T]{id: r.id, c: c, arena: a}, true
}

func MapRef[T Block, R any](r Ref[T], a *Arena, f func(T) R) (ret R, ok bool) {
	ok = r.View(a, func(t T) { ret = f(t) })
	return
}

func view[T Block](c *cell, f func(T)) bool {
	if c == nil {
		return false
	}
	payload, _, ok := c.borrow()
	if !ok {
		return false
	}
	defer c.unborrow()
	t, ok := payload.(T)
	if !ok {
		return false
	}
	f(t)
	return true
}
