package storage

import (
	"encoding/binary"
	"encoding/json"

	"github.com/cespare/xxhash/v2"
	ba "github.com/drpcorg/blockarena"
	"github.com/drpcorg/blockarena/arena_errors"
	"github.com/drpcorg/blockarena/protocol"
	"github.com/drpcorg/blockarena/u128"
	"github.com/pkg/errors"
)

// Block records live under 'B' + 16-byte id. The value is
//
//	8 bytes  timestamp, big-endian
//	8 bytes  xxhash64 of the body
//	...      JSON body {"kind": ..., "payload": ...}
const (
	BlockPrefix = 'B'
	KeyLen      = 1 + u128.Len
	headerLen   = 16
)

func Key(id u128.ID) []byte {
	key := make([]byte, 0, KeyLen)
	key = append(key, BlockPrefix)
	return append(key, id.Bytes()...)
}

func KeyID(key []byte) (u128.ID, bool) {
	if len(key) != KeyLen || key[0] != BlockPrefix {
		return u128.None, false
	}
	return u128.FromBytes(key[1:]), true
}

type body struct {
	Kind    ba.Kind        `json:"kind"`
	Payload protocol.Value `json:"payload"`
}

func EncodeValue(rec ba.Record) ([]byte, error) {
	js, err := json.Marshal(body{Kind: rec.Kind, Payload: rec.Payload})
	if err != nil {
		return nil, err
	}
	val := make([]byte, headerLen, headerLen+len(js))
	binary.BigEndian.PutUint64(val[0:8], uint64(rec.Timestamp))
	binary.BigEndian.PutUint64(val[8:16], xxhash.Sum64(js))
	return append(val, js...), nil
}

// valueTime reads the timestamp of a stored value, false if the value
// is too short to carry one.
func valueTime(val []byte) (ba.Timestamp, bool) {
	if len(val) < headerLen {
		return 0, false
	}
	return ba.Timestamp(binary.BigEndian.Uint64(val[0:8])), true
}

func DecodeValue(id u128.ID, val []byte) (rec ba.Record, err error) {
	ts, ok := valueTime(val)
	if !ok {
		return rec, errors.Wrapf(arena_errors.ErrMalformed, "value of %s is %d bytes", id, len(val))
	}
	js := val[headerLen:]
	if binary.BigEndian.Uint64(val[8:16]) != xxhash.Sum64(js) {
		return rec, errors.Wrapf(arena_errors.ErrChecksum, "block %s", id)
	}
	var b body
	if err = json.Unmarshal(js, &b); err != nil {
		return rec, errors.Wrapf(arena_errors.ErrMalformed, "block %s: %v", id, err)
	}
	return ba.Record{ID: id, Timestamp: ts, Kind: b.Kind, Payload: b.Payload}, nil
}
