// Package blocks holds the concrete block kinds of a tabletop room.
package blocks

import (
	ba "github.com/drpcorg/blockarena"
	"github.com/drpcorg/blockarena/arena_errors"
	"github.com/drpcorg/blockarena/protocol"
	"github.com/drpcorg/blockarena/u128"
	"github.com/pkg/errors"
)

const (
	KindWorld       ba.Kind = "World"
	KindTable       ba.Kind = "Table"
	KindBoxblock    ba.Kind = "Boxblock"
	KindCharacter   ba.Kind = "Character"
	KindProperty    ba.Kind = "Property"
	KindChat        ba.Kind = "Chat"
	KindChatChannel ba.Kind = "ChatChannel"
	KindMessage     ba.Kind = "Message"
	KindImageData   ba.Kind = "ImageData"
)

// Kinds is the kind table of every block in this package.
func Kinds() ba.Kinds {
	return ba.Kinds{
		KindWorld:       func() ba.Block { return &World{} },
		KindTable:       func() ba.Block { return NewTable("") },
		KindBoxblock:    func() ba.Block { return NewBoxblock("") },
		KindCharacter:   func() ba.Block { return NewCharacter("") },
		KindProperty:    func() ba.Block { return &Property{} },
		KindChat:        func() ba.Block { return &Chat{} },
		KindChatChannel: func() ba.Block { return &ChatChannel{} },
		KindMessage:     func() ba.Block { return &Message{} },
		KindImageData:   func() ba.Block { return &ImageData{} },
	}
}

// NewArena is an arena that knows all the kinds above.
func NewArena(opts ba.Options) *ba.Arena {
	kinds := Kinds()
	for kind, blank := range opts.Kinds {
		kinds[kind] = blank
	}
	opts.Kinds = kinds
	return ba.New(opts)
}

// fields reads an object payload, remembering the first missing or
// mistyped field.
type fields struct {
	kind ba.Kind
	obj  protocol.Object
	err  error
}

func readFields(kind ba.Kind, v protocol.Value) *fields {
	f := &fields{kind: kind}
	var ok bool
	if f.obj, ok = protocol.AsObject(v); !ok {
		f.err = errors.Wrapf(arena_errors.ErrMalformed, "%s: not an object", kind)
	}
	return f
}

func (f *fields) fail(name string) {
	if f.err == nil {
		f.err = errors.Wrapf(arena_errors.ErrMalformed, "%s.%s", f.kind, name)
	}
}

func (f *fields) value(name string) protocol.Value {
	if f.obj == nil {
		return nil
	}
	return f.obj[name]
}

func (f *fields) str(name string) string {
	s, ok := protocol.String(f.value(name))
	if !ok {
		f.fail(name)
	}
	return s
}

func (f *fields) number(name string) float64 {
	n, ok := protocol.Number[float64](f.value(name))
	if !ok {
		f.fail(name)
	}
	return n
}

func (f *fields) integer(name string) int {
	n, ok := protocol.Number[int](f.value(name))
	if !ok {
		f.fail(name)
	}
	return n
}

// flag is an optional boolean, false when missing.
func (f *fields) flag(name string) bool {
	v := f.value(name)
	if v == nil {
		return false
	}
	b, ok := protocol.Bool(v)
	if !ok {
		f.fail(name)
	}
	return b
}

func (f *fields) float3(name string) [3]float64 {
	v, ok := protocol.Float3(f.value(name))
	if !ok {
		f.fail(name)
	}
	return v
}

func (f *fields) strings(name string) []string {
	ss, ok := stringList(f.value(name))
	if !ok {
		f.fail(name)
	}
	return ss
}

func stringList(v protocol.Value) ([]string, bool) {
	arr, ok := protocol.AsArray(v)
	if !ok {
		return nil, false
	}
	ret := make([]string, 0, len(arr))
	for _, item := range arr {
		s, ok := protocol.String(item)
		if !ok {
			return nil, false
		}
		ret = append(ret, s)
	}
	return ret, true
}

func handles[T ba.Block](f *fields, u *ba.Unpacker, name string) []ba.Handle[T] {
	hs, ok := ba.UnpackHandles[T](u, f.value(name))
	if !ok {
		f.fail(name)
	}
	return hs
}

func packStrings(ss []string) protocol.Array {
	arr := make(protocol.Array, len(ss))
	for i, s := range ss {
		arr[i] = s
	}
	return arr
}

// releaseAll gives back the shares of hs and returns an empty list.
func releaseAll[T ba.Block](hs []ba.Handle[T]) []ba.Handle[T] {
	for _, h := range hs {
		h.Release()
	}
	return nil
}

// remove drops the handle with the given id, releasing its share.
func remove[T ba.Block](hs []ba.Handle[T], id u128.ID) ([]ba.Handle[T], bool) {
	for i, h := range hs {
		if h.ID() == id {
			h.Release()
			return append(hs[:i], hs[i+1:]...), true
		}
	}
	return hs, false
}
