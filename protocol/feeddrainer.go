package protocol

import (
	"context"
	"io"
)

// Feeder and Drainer are the two ends of every record stream:
// a replication session feeds frames to the transport and the
// transport drains whatever a peer sent back into the session.

// Feeder produces records. The EoF convention follows io.Reader:
// either `records, EoF` or `records, nil` followed by `nil, EoF`.
type Feeder interface {
	Feed(ctx context.Context) (recs Records, err error)
}

// Drainer consumes records.
type Drainer interface {
	Drain(ctx context.Context, recs Records) error
}

type FeedDrainCloser interface {
	Feeder
	Drainer
	io.Closer
}

// Relay performs a single feed-drain step.
func Relay(ctx context.Context, feeder Feeder, drainer Drainer) error {
	recs, err := feeder.Feed(ctx)
	if len(recs) > 0 {
		derr := drainer.Drain(ctx, recs)
		if err == nil {
			err = derr
		}
	}
	return err
}

// Pump relays records until an error (typically EOF) or ctx is done.
func Pump(ctx context.Context, feeder Feeder, drainer Drainer) (err error) {
	for err == nil && ctx.Err() == nil {
		err = Relay(ctx, feeder, drainer)
	}
	return
}
