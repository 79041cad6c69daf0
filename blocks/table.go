package blocks

import (
	ba "github.com/drpcorg/blockarena"
	"github.com/drpcorg/blockarena/arena_errors"
	"github.com/drpcorg/blockarena/protocol"
	"github.com/drpcorg/blockarena/u128"
	"github.com/pkg/errors"
)

type Table struct {
	Name                string
	Size                [2]float64
	Boxblocks           []ba.Handle[*Boxblock]
	DefaultIsBindToGrid bool
	IsShowingGrid       bool
	Texture             ba.Ref[*ImageData]
}

func NewTable(name string) *Table {
	return &Table{
		Name:                name,
		Size:                [2]float64{20, 20},
		DefaultIsBindToGrid: true,
		IsShowingGrid:       true,
	}
}

func (t *Table) Kind() ba.Kind { return KindTable }

func (t *Table) Release() {
	t.Boxblocks = releaseAll(t.Boxblocks)
}

func (t *Table) PushBoxblock(b ba.Handle[*Boxblock]) {
	t.Boxblocks = append(t.Boxblocks, b)
}

func (t *Table) RemoveBoxblock(id u128.ID) (ok bool) {
	t.Boxblocks, ok = remove(t.Boxblocks, id)
	return
}

// CreateChild adds a boxblock named name to the table, taking the
// table's grid default, and returns a handle to the new block.
func CreateChild(a *ba.Arena, table ba.Handle[*Table], name string) (ba.Handle[*Boxblock], error) {
	box := NewBoxblock(name)
	if !table.View(func(t *Table) { box.IsBindToGrid = t.DefaultIsBindToGrid }) {
		return ba.Handle[*Boxblock]{}, errors.Wrapf(arena_errors.ErrObjectUnknown, "table %s", table.ID())
	}
	h := ba.Insert(a, box)
	err := table.Update(func(t *Table) { t.PushBoxblock(h.Clone()) })
	if err != nil {
		h.Release()
		return ba.Handle[*Boxblock]{}, err
	}
	return h, nil
}

func (t *Table) Pack(p *ba.Packer) protocol.Value {
	return protocol.Object{
		"name":                    t.Name,
		"size":                    protocol.Array{t.Size[0], t.Size[1]},
		"boxblocks":               ba.PackHandles(p, t.Boxblocks),
		"default_is_bind_to_grid": t.DefaultIsBindToGrid,
		"is_showing_grid":         t.IsShowingGrid,
		"texture":                 ba.PackRef(p, t.Texture),
	}
}

func (t *Table) Unpack(v protocol.Value, u *ba.Unpacker) error {
	f := readFields(KindTable, v)
	t.Name = f.str("name")
	if size, ok := protocol.AsArray(f.value("size")); ok && len(size) == 2 {
		t.Size[0], _ = protocol.Number[float64](size[0])
		t.Size[1], _ = protocol.Number[float64](size[1])
	}
	t.Boxblocks = handles[*Boxblock](f, u, "boxblocks")
	t.DefaultIsBindToGrid = f.flag("default_is_bind_to_grid")
	t.IsShowingGrid = f.flag("is_showing_grid")
	t.Texture = ba.UnpackRef[*ImageData](u, f.value("texture"))
	return f.err
}
