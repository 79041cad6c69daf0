// Provides common block arena error definitions.
package arena_errors

import "errors"

var (
	ErrObjectUnknown = errors.New("arena: unknown object")
	ErrKindUnknown   = errors.New("arena: unknown block kind")
	ErrWrongKind     = errors.New("arena: block holds another kind")
	ErrMalformed     = errors.New("arena: malformed wire value")

	ErrReentrantUpdate = errors.New("arena: re-entrant update of a block")
	ErrBorrowed        = errors.New("arena: block is being read")
	ErrReplaced        = errors.New("arena: block was replaced by a merge during update")
	ErrTimestampMax    = errors.New("arena: block timestamp cannot be advanced")

	ErrClosed   = errors.New("arena: store is closed")
	ErrChecksum = errors.New("arena: stored record checksum mismatch")
	ErrBadFrame = errors.New("arena: bad sync frame")
)
