package storage

import (
	"io"

	"github.com/cockroachdb/pebble"
)

const MergerName = "blockarena.lww"

// Merger resolves merge operands with last-writer-wins, the same way
// the arena does: the largest timestamp wins, the earlier write wins
// a tie. Saving a stale snapshot can never regress a block.
var Merger = &pebble.Merger{
	Name: MergerName,
	Merge: func(key, value []byte) (pebble.ValueMerger, error) {
		return &lwwMerger{val: clone(value)}, nil
	},
}

type lwwMerger struct {
	val []byte
}

func clone(value []byte) []byte {
	target := make([]byte, len(value))
	copy(target, value)
	return target
}

func (m *lwwMerger) wins(value []byte, tie bool) bool {
	ts, ok := valueTime(value)
	if !ok {
		return false
	}
	cur, ok := valueTime(m.val)
	if !ok {
		return true
	}
	return ts > cur || (tie && ts == cur)
}

func (m *lwwMerger) MergeNewer(value []byte) error {
	if m.wins(value, false) {
		m.val = clone(value)
	}
	return nil
}

func (m *lwwMerger) MergeOlder(value []byte) error {
	if m.wins(value, true) {
		m.val = clone(value)
	}
	return nil
}

func (m *lwwMerger) Finish(includesBase bool) ([]byte, io.Closer, error) {
	return m.val, nil, nil
}
