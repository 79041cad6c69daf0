package blockarena

import (
	"context"
	"encoding/json"
	"time"

	"github.com/drpcorg/blockarena/arena_errors"
	"github.com/pkg/errors"
)

type MergeStats struct {
	Applied int
	Stale   int
	Dropped int
}

func (s *MergeStats) Add(other MergeStats) {
	s.Applied += other.Applied
	s.Stale += other.Stale
	s.Dropped += other.Dropped
}

func (s MergeStats) Total() int {
	return s.Applied + s.Stale + s.Dropped
}

// Merge applies a batch of records with last-writer-wins. A record
// that cannot be unpacked is logged and dropped; the rest of the
// batch still goes in. On cancellation the stats of the prefix that
// was merged are returned along with ctx.Err().
func (a *Arena) Merge(ctx context.Context, recs []Record) (stats MergeStats, err error) {
	start := time.Now()
	defer func() {
		MergeDuration.Observe(time.Since(start).Seconds())
	}()
	for _, rec := range recs {
		if err = ctx.Err(); err != nil {
			a.log.WarnCtx(ctx, "merge interrupted", "merged", stats.Total(), "left", len(recs)-stats.Total())
			return stats, err
		}
		blk, uerr := a.Unpack(rec)
		if uerr != nil {
			stats.Dropped++
			UnpackFailures.WithLabelValues(string(rec.Kind)).Inc()
			a.log.WarnCtx(ctx, "merge entry dropped", "id", rec.ID.String(), "kind", string(rec.Kind), "err", uerr)
			continue
		}
		if a.Assign(rec.ID, rec.Timestamp, blk) {
			stats.Applied++
		} else {
			stats.Stale++
		}
	}
	a.log.DebugCtx(ctx, "merged", "applied", stats.Applied, "stale", stats.Stale, "dropped", stats.Dropped)
	return stats, nil
}

// MergeJSON decodes a JSON array of records and merges it. Entries
// that are not records at all are dropped like malformed payloads.
func (a *Arena) MergeJSON(ctx context.Context, data []byte) (MergeStats, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return MergeStats{}, errors.Wrapf(arena_errors.ErrMalformed, "record batch: %v", err)
	}
	recs := make([]Record, 0, len(raw))
	dropped := 0
	for _, item := range raw {
		var rec Record
		if err := json.Unmarshal(item, &rec); err != nil {
			dropped++
			a.log.WarnCtx(ctx, "unreadable record dropped", "err", err)
			continue
		}
		recs = append(recs, rec)
	}
	stats, err := a.Merge(ctx, recs)
	stats.Dropped += dropped
	return stats, err
}
