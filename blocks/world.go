package blocks

import (
	ba "github.com/drpcorg/blockarena"
	"github.com/drpcorg/blockarena/protocol"
	"github.com/drpcorg/blockarena/u128"
)

// World is the root block of a room. Memos and tags may hold blocks
// of any kind.
type World struct {
	Tables        []ba.Handle[*Table]
	SelectedTable ba.Handle[*Table]
	Characters    []ba.Handle[*Character]
	Memos         []ba.Handle[ba.Block]
	Tags          []ba.Handle[ba.Block]
}

func NewWorld(selected ba.Handle[*Table]) *World {
	w := &World{SelectedTable: selected}
	if !selected.IsNone() {
		w.Tables = append(w.Tables, selected.Clone())
	}
	return w
}

func (w *World) Kind() ba.Kind { return KindWorld }

func (w *World) Release() {
	w.Tables = releaseAll(w.Tables)
	w.SelectedTable.Release()
	w.SelectedTable = ba.Handle[*Table]{}
	w.Characters = releaseAll(w.Characters)
	w.Memos = releaseAll(w.Memos)
	w.Tags = releaseAll(w.Tags)
}

func (w *World) AddTable(t ba.Handle[*Table]) {
	w.Tables = append(w.Tables, t)
}

func (w *World) RemoveTable(id u128.ID) (ok bool) {
	w.Tables, ok = remove(w.Tables, id)
	return
}

func (w *World) AddCharacter(c ba.Handle[*Character]) {
	w.Characters = append(w.Characters, c)
}

func (w *World) RemoveCharacter(id u128.ID) (ok bool) {
	w.Characters, ok = remove(w.Characters, id)
	return
}

func (w *World) AddMemo(m ba.Handle[ba.Block]) {
	w.Memos = append(w.Memos, m)
}

func (w *World) RemoveMemo(id u128.ID) (ok bool) {
	w.Memos, ok = remove(w.Memos, id)
	return
}

func (w *World) AddTag(t ba.Handle[ba.Block]) {
	w.Tags = append(w.Tags, t)
}

func (w *World) RemoveTag(id u128.ID) (ok bool) {
	w.Tags, ok = remove(w.Tags, id)
	return
}

func (w *World) Pack(p *ba.Packer) protocol.Value {
	return protocol.Object{
		"tables":         ba.PackHandles(p, w.Tables),
		"selected_table": ba.PackHandle(p, w.SelectedTable),
		"characters":     ba.PackHandles(p, w.Characters),
		"memos":          ba.PackHandles(p, w.Memos),
		"tags":           ba.PackHandles(p, w.Tags),
	}
}

func (w *World) Unpack(v protocol.Value, u *ba.Unpacker) error {
	f := readFields(KindWorld, v)
	w.Tables = handles[*Table](f, u, "tables")
	w.SelectedTable = ba.UnpackHandle[*Table](u, f.value("selected_table"))
	w.Characters = handles[*Character](f, u, "characters")
	w.Memos = handles[ba.Block](f, u, "memos")
	w.Tags = handles[ba.Block](f, u, "tags")
	return f.err
}
