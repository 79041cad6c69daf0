package blockarena

import (
	"slices"

	"github.com/drpcorg/blockarena/arena_errors"
	"github.com/drpcorg/blockarena/protocol"
	"github.com/drpcorg/blockarena/u128"
	"github.com/pkg/errors"
)

// PackDepth decides how nested references are expanded by Pack.
type PackDepth byte

const (
	// OnlyID packs nested references as bare ids.
	OnlyID PackDepth = iota
	// FirstBlock expands the references of the packed block one level;
	// the references of those blocks go out as ids.
	FirstBlock
	// Recursive expands every reachable block inline once, up to MaxPackDepth.
	Recursive
)

var packDepthNames = []string{"OnlyId", "FirstBlock", "Recursive"}

func (d PackDepth) String() string {
	if int(d) < len(packDepthNames) {
		return packDepthNames[d]
	}
	return "PackDepth?"
}

func ParsePackDepth(name string) (PackDepth, bool) {
	i := slices.Index(packDepthNames, name)
	if i < 0 {
		return OnlyID, false
	}
	return PackDepth(i), true
}

// Expanded reference wire form:
//
//	{"_id": "<32 hex>", "_kind": "Table", "_ts": 1700000000000, "_val": {...}}
const (
	KeyID      = "_id"
	KeyKind    = "_kind"
	KeyTime    = "_ts"
	KeyPayload = "_val"
)

// Packer is handed to Block.Pack. It knows the requested depth and how
// deep the current block sits. At Recursive depth every block is
// expanded at most once per pack; later references to it, cycles
// included, go out as bare ids.
type Packer struct {
	arena *Arena
	depth PackDepth
	level int
	seen  map[u128.ID]struct{}
}

func (a *Arena) packer(root u128.ID, depth PackDepth) *Packer {
	p := &Packer{arena: a, depth: depth}
	if depth == Recursive {
		p.seen = map[u128.ID]struct{}{root: {}}
	}
	return p
}

func (p *Packer) Depth() PackDepth {
	return p.depth
}

func (p *Packer) Level() int {
	return p.level
}

func (p *Packer) expands(id u128.ID) bool {
	switch p.depth {
	case FirstBlock:
		return p.level == 0
	case Recursive:
		if p.level >= p.arena.opts.MaxPackDepth {
			return false
		}
		_, done := p.seen[id]
		return !done
	default:
		return false
	}
}

// Ref packs a nested reference: a bare id, an expanded block, or nil
// for None and for targets that are missing when expansion is due.
func (p *Packer) Ref(id u128.ID) protocol.Value {
	if id.IsNone() {
		return nil
	}
	if !p.expands(id) {
		return id.String()
	}
	c := p.arena.lookup(id)
	if c == nil {
		return nil
	}
	payload, ts, ok := c.borrow()
	if !ok {
		return nil
	}
	defer c.unborrow()
	if p.seen != nil {
		p.seen[id] = struct{}{}
	}
	child := Packer{
		arena: p.arena,
		depth: p.depth,
		level: p.level + 1,
		seen:  p.seen,
	}
	return protocol.Object{
		KeyID:      id.String(),
		KeyKind:    string(payload.Kind()),
		KeyTime:    float64(ts),
		KeyPayload: payload.Pack(&child),
	}
}

func PackHandle[T Block](p *Packer, h Handle[T]) protocol.Value {
	return p.Ref(h.ID())
}

func PackRef[T Block](p *Packer, r Ref[T]) protocol.Value {
	return p.Ref(r.ID())
}

func PackHandles[T Block](p *Packer, hs []Handle[T]) protocol.Value {
	arr := make(protocol.Array, 0, len(hs))
	for _, h := range hs {
		arr = append(arr, p.Ref(h.ID()))
	}
	return arr
}

// Unpacker is handed to Block.Unpack. Nested blocks found in the wire
// value are merged into its arena with their own timestamps; ids not
// seen yet get placeholder slots.
type Unpacker struct {
	arena    *Arena
	level    int
	failures int
}

func (a *Arena) unpacker() *Unpacker {
	return &Unpacker{arena: a}
}

func (u *Unpacker) Arena() *Arena {
	return u.arena
}

// Failures counts nested values that could not be reconstructed.
func (u *Unpacker) Failures() int {
	return u.failures
}

// Ref reads a nested reference. It never fails: unreadable input
// reads as None, a malformed expanded block leaves a placeholder.
func (u *Unpacker) Ref(v protocol.Value) u128.ID {
	switch val := v.(type) {
	case string:
		id, err := u128.Parse(val)
		if err != nil || id.IsNone() {
			return u128.None
		}
		u.arena.slot(id)
		return id
	case protocol.Object:
		return u.expanded(val)
	default:
		return u128.None
	}
}

func (u *Unpacker) expanded(obj protocol.Object) u128.ID {
	str, _ := protocol.StringField(obj, KeyID)
	id, err := u128.Parse(str)
	if err != nil || id.IsNone() {
		u.failures++
		return u128.None
	}
	u.arena.slot(id)
	kind, _ := protocol.StringField(obj, KeyKind)
	ts, ok := protocol.NumberField[int64](obj, KeyTime)
	if !ok || u.level >= u.arena.opts.MaxPackDepth {
		u.fail(Kind(kind), arena_errors.ErrMalformed)
		return id
	}
	u.level++
	blk, err := u.arena.decode(Kind(kind), obj[KeyPayload], u)
	u.level--
	if err != nil {
		u.fail(Kind(kind), err)
		return id
	}
	u.arena.Assign(id, Timestamp(ts), blk)
	return id
}

func (u *Unpacker) fail(kind Kind, err error) {
	u.failures++
	UnpackFailures.WithLabelValues(string(kind)).Inc()
	u.arena.log.Warn("nested block dropped", "kind", string(kind), "err", err)
}

func UnpackHandle[T Block](u *Unpacker, v protocol.Value) Handle[T] {
	return HandleOf[T](u.arena, u.Ref(v))
}

func UnpackRef[T Block](u *Unpacker, v protocol.Value) Ref[T] {
	return RefOf[T](u.Ref(v))
}

// UnpackHandles reads an array of references, skipping null entries.
func UnpackHandles[T Block](u *Unpacker, v protocol.Value) ([]Handle[T], bool) {
	arr, ok := protocol.AsArray(v)
	if !ok {
		return nil, v == nil
	}
	hs := make([]Handle[T], 0, len(arr))
	for _, item := range arr {
		if h := UnpackHandle[T](u, item); !h.IsNone() {
			hs = append(hs, h)
		}
	}
	return hs, true
}

// decode builds a block of the given kind from its wire payload.
func (a *Arena) decode(kind Kind, v protocol.Value, u *Unpacker) (Block, error) {
	a.lock.RLock()
	blank := a.opts.Kinds[kind]
	a.lock.RUnlock()
	if blank == nil {
		return nil, errors.Wrapf(arena_errors.ErrKindUnknown, "kind %q", kind)
	}
	blk := blank()
	if err := blk.Unpack(v, u); err != nil {
		release(blk)
		if errors.Is(err, arena_errors.ErrMalformed) {
			return nil, err
		}
		return nil, errors.Wrapf(arena_errors.ErrMalformed, "%s: %v", kind, err)
	}
	return blk, nil
}
