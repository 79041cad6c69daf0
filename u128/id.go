package u128

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"io"
)

/*
	ID is an opaque 128-bit block identifier.
	It carries no replica, sequence or clock information: ids are
	drawn from a cryptographic source and compared by value only.

0..............................64.............................128
+-------+-------+-------+-------+-------+-------+-------+-------
|..............hi.(64.bits).....|..............lo.(64.bits).....|
*/
type ID struct {
	hi uint64
	lo uint64
}

// None is the reserved "no object" sentinel.
var None = ID{}

const Len = 16
const HexLen = Len * 2

var ErrBadID = errors.New("u128: not a 128-bit hex id")

// Source is where New takes its randomness from.
var Source io.Reader = rand.Reader

// New returns a fresh random id, never None.
func New() ID {
	for {
		id, err := NewFrom(Source)
		if err != nil {
			panic("u128: random source failed: " + err.Error())
		}
		if !id.IsNone() {
			return id
		}
	}
}

// NewFrom reads 16 bytes from r. The result may be None.
func NewFrom(r io.Reader) (id ID, err error) {
	var buf [Len]byte
	if _, err = io.ReadFull(r, buf[:]); err != nil {
		return None, err
	}
	return FromBytes(buf[:]), nil
}

func FromUint64s(hi, lo uint64) ID {
	return ID{hi, lo}
}

func (id ID) Uint64s() (hi, lo uint64) {
	return id.hi, id.lo
}

func (id ID) IsNone() bool {
	return id == None
}

func (id ID) Less(other ID) bool {
	if id.hi != other.hi {
		return id.hi < other.hi
	}
	return id.lo < other.lo
}

func (id ID) Compare(other ID) int {
	switch {
	case id == other:
		return 0
	case id.Less(other):
		return -1
	default:
		return 1
	}
}

// Bytes is the big-endian form, also used as a storage key suffix.
func (id ID) Bytes() []byte {
	var ret [Len]byte
	binary.BigEndian.PutUint64(ret[:8], id.hi)
	binary.BigEndian.PutUint64(ret[8:], id.lo)
	return ret[:]
}

func FromBytes(by []byte) ID {
	if len(by) < Len {
		return None
	}
	return ID{
		hi: binary.BigEndian.Uint64(by[:8]),
		lo: binary.BigEndian.Uint64(by[8:Len]),
	}
}

func (id ID) String() string {
	return hex.EncodeToString(id.Bytes())
}

// Parse reads the 32-digit hex form produced by String.
func Parse(str string) (ID, error) {
	if len(str) != HexLen {
		return None, ErrBadID
	}
	var buf [Len]byte
	if _, err := hex.Decode(buf[:], []byte(str)); err != nil {
		return None, ErrBadID
	}
	return FromBytes(buf[:]), nil
}

// MustParse is for tests and constants.
func MustParse(str string) ID {
	id, err := Parse(str)
	if err != nil {
		panic(err)
	}
	return id
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(text []byte) (err error) {
	*id, err = Parse(string(text))
	return
}
