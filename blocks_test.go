package blockarena

import (
	"errors"

	"github.com/drpcorg/blockarena/protocol"
)

// Small block kinds for the arena tests.

const (
	KindNote Kind = "Note"
	KindNode Kind = "Node"
)

type note struct {
	Text string
}

func (n *note) Kind() Kind { return KindNote }

func (n *note) Pack(p *Packer) protocol.Value {
	return protocol.Object{"text": n.Text}
}

func (n *note) Unpack(v protocol.Value, u *Unpacker) (err error) {
	var ok bool
	if n.Text, ok = protocol.StringField(v, "text"); !ok {
		return errors.New("note: no text")
	}
	return nil
}

type node struct {
	Name  string
	Next  Handle[*node]
	Links []Handle[*node]
	Note  Ref[*note]
}

func (n *node) Kind() Kind { return KindNode }

func (n *node) Pack(p *Packer) protocol.Value {
	return protocol.Object{
		"name":  n.Name,
		"next":  PackHandle(p, n.Next),
		"links": PackHandles(p, n.Links),
		"note":  PackRef(p, n.Note),
	}
}

func (n *node) Unpack(v protocol.Value, u *Unpacker) error {
	obj, ok := protocol.AsObject(v)
	if !ok {
		return errors.New("node: not an object")
	}
	if n.Name, ok = protocol.StringField(obj, "name"); !ok {
		return errors.New("node: no name")
	}
	n.Next = UnpackHandle[*node](u, obj["next"])
	if n.Links, ok = UnpackHandles[*node](u, obj["links"]); !ok {
		return errors.New("node: bad links")
	}
	n.Note = UnpackRef[*note](u, obj["note"])
	return nil
}

func (n *node) Release() {
	n.Next.Release()
	n.Next = Handle[*node]{}
	for _, h := range n.Links {
		h.Release()
	}
	n.Links = nil
}

func testKinds() Kinds {
	return Kinds{
		KindNote: func() Block { return &note{} },
		KindNode: func() Block { return &node{} },
	}
}

// testClock is a settable clock.
type testClock struct {
	now Timestamp
}

func (c *testClock) Now() Timestamp {
	return c.now
}

func newTestArena() (*Arena, *testClock) {
	clock := &testClock{now: 1000}
	return New(Options{Kinds: testKinds(), Clock: clock.Now}), clock
}
