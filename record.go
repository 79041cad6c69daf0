package blockarena

import (
	"github.com/drpcorg/blockarena/arena_errors"
	"github.com/drpcorg/blockarena/protocol"
	"github.com/drpcorg/blockarena/u128"
	"github.com/pkg/errors"
)

// Record is one block in transit: the unit of pack_all, merges,
// storage and replication frames.
type Record struct {
	ID        u128.ID        `json:"id"`
	Timestamp Timestamp      `json:"timestamp"`
	Kind      Kind           `json:"kind"`
	Payload   protocol.Value `json:"payload"`
}

// Pack encodes the block stored under id. Placeholders, absent ids
// and blocks being mutated yield false.
func (a *Arena) Pack(id u128.ID, depth PackDepth) (rec Record, ok bool) {
	c := a.lookup(id)
	if c == nil {
		return
	}
	payload, ts, ok := c.borrow()
	if !ok {
		return
	}
	defer c.unborrow()
	return Record{
		ID:        id,
		Timestamp: ts,
		Kind:      payload.Kind(),
		Payload:   payload.Pack(a.packer(id, depth)),
	}, true
}

// PackAll packs every stored block, in id order.
func (a *Arena) PackAll(depth PackDepth) []Record {
	return a.PackListed(a.IDs(), depth)
}

// PackListed packs the given ids, silently skipping the absent ones.
func (a *Arena) PackListed(ids []u128.ID, depth PackDepth) []Record {
	recs := make([]Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := a.Pack(id, depth); ok {
			recs = append(recs, rec)
		}
	}
	return recs
}

// Unpack decodes the payload of rec into a fresh block of its kind.
// Expanded nested blocks are merged into the arena as a side effect;
// rec itself is not assigned.
func (a *Arena) Unpack(rec Record) (Block, error) {
	if rec.ID.IsNone() {
		return nil, errors.Wrap(arena_errors.ErrMalformed, "record without id")
	}
	blk, err := a.decode(rec.Kind, rec.Payload, a.unpacker())
	if err != nil {
		return nil, errors.Wrapf(err, "record %s", rec.ID)
	}
	return blk, nil
}
