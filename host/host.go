//go:generate mockgen -package $GOPACKAGE -source $GOFILE -destination host_mock.go

// Package host is the view replication has of a local arena.
package host

import (
	"context"

	ba "github.com/drpcorg/blockarena"
	"github.com/drpcorg/blockarena/u128"
	"github.com/drpcorg/blockarena/utils"
	"github.com/google/uuid"
)

type Host interface {
	PackAll(depth ba.PackDepth) []ba.Record
	PackListed(ids []u128.ID, depth ba.PackDepth) []ba.Record
	Merge(ctx context.Context, recs []ba.Record) (ba.MergeStats, error)
	// Source names the replica in handshakes and logs.
	Source() string
	Logger() utils.Logger
}

// Local serves a Host out of an in-process arena.
type Local struct {
	*ba.Arena
	source string
}

// Wrap names a with source, or with a fresh random uuid if source is empty.
func Wrap(a *ba.Arena, source string) *Local {
	if source == "" {
		source = uuid.NewString()
	}
	return &Local{Arena: a, source: source}
}

func (l *Local) Source() string {
	return l.source
}

var _ Host = (*Local)(nil)
