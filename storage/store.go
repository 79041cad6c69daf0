// Package storage keeps arena snapshots in a pebble database.
package storage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cockroachdb/pebble"
	ba "github.com/drpcorg/blockarena"
	"github.com/drpcorg/blockarena/arena_errors"
	"github.com/drpcorg/blockarena/u128"
	"github.com/drpcorg/blockarena/utils"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

var SkippedCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "blockarena",
	Subsystem: "storage",
	Name:      "skipped",
	Help:      "Stored records skipped on load",
}, []string{"reason"})

var SavedCount = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "blockarena",
	Subsystem: "storage",
	Name:      "saved",
	Help:      "Records written as merge operands",
})

type Options struct {
	Pebble pebble.Options
	Logger utils.Logger
}

func (o *Options) SetDefaults() {
	if o.Logger == nil {
		o.Logger = utils.NewDefaultLogger(slog.LevelWarn)
	}
}

var WriteOptions = pebble.WriteOptions{Sync: true}

type Store struct {
	lock   sync.RWMutex
	db     *pebble.DB
	dir    string
	log    utils.Logger
	closed bool
}

func Open(dir string, opts Options) (*Store, error) {
	opts.SetDefaults()
	popts := opts.Pebble
	popts.Merger = Merger
	db, err := pebble.Open(dir, &popts)
	if err != nil {
		return nil, errors.Wrapf(err, "open store %s", dir)
	}
	return &Store{db: db, dir: dir, log: opts.Logger}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Save writes recs as LWW merge operands in one synced batch.
func (s *Store) Save(ctx context.Context, recs []ba.Record) error {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.closed {
		return arena_errors.ErrClosed
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rec.ID.IsNone() {
			continue
		}
		val, err := EncodeValue(rec)
		if err != nil {
			return errors.Wrapf(err, "encode %s", rec.ID)
		}
		if err = batch.Merge(Key(rec.ID), val, nil); err != nil {
			return err
		}
	}
	if err := batch.Commit(&WriteOptions); err != nil {
		return err
	}
	SavedCount.Add(float64(len(recs)))
	s.log.DebugCtx(ctx, "saved", "records", len(recs))
	return nil
}

// Load reads every stored block. Records that fail their checksum or
// do not decode are logged and skipped.
func (s *Store) Load(ctx context.Context) ([]ba.Record, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.closed {
		return nil, arena_errors.ErrClosed
	}
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{BlockPrefix},
		UpperBound: []byte{BlockPrefix + 1},
	})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var recs []ba.Record
	for it.First(); it.Valid(); it.Next() {
		if err := ctx.Err(); err != nil {
			return recs, err
		}
		id, ok := KeyID(it.Key())
		if !ok {
			SkippedCount.WithLabelValues("key").Inc()
			continue
		}
		rec, err := DecodeValue(id, it.Value())
		if err != nil {
			reason := "malformed"
			if errors.Is(err, arena_errors.ErrChecksum) {
				reason = "checksum"
			}
			SkippedCount.WithLabelValues(reason).Inc()
			s.log.WarnCtx(ctx, "stored block skipped", "id", id.String(), "err", err)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, it.Error()
}

func (s *Store) Get(id u128.ID) (rec ba.Record, ok bool, err error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.closed {
		return rec, false, arena_errors.ErrClosed
	}
	val, closer, err := s.db.Get(Key(id))
	if err == pebble.ErrNotFound {
		return rec, false, nil
	} else if err != nil {
		return rec, false, err
	}
	defer closer.Close()
	rec, err = DecodeValue(id, val)
	return rec, err == nil, err
}

// Count is the number of stored block keys.
func (s *Store) Count() (n int, err error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.closed {
		return 0, arena_errors.ErrClosed
	}
	return s.count()
}

func (s *Store) count() (n int, err error) {
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{BlockPrefix},
		UpperBound: []byte{BlockPrefix + 1},
	})
	if err != nil {
		return 0, err
	}
	for it.First(); it.Valid(); it.Next() {
		n++
	}
	err = it.Error()
	_ = it.Close()
	return
}

func (s *Store) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return arena_errors.ErrClosed
	}
	s.closed = true
	return s.db.Close()
}

// SaveArena packs the whole arena with ids for nested references and
// saves it.
func (s *Store) SaveArena(ctx context.Context, a *ba.Arena) (int, error) {
	recs := a.PackAll(ba.OnlyID)
	return len(recs), s.Save(ctx, recs)
}

// LoadArena merges the stored snapshot into a.
func (s *Store) LoadArena(ctx context.Context, a *ba.Arena) (ba.MergeStats, error) {
	recs, err := s.Load(ctx)
	if err != nil {
		return ba.MergeStats{}, err
	}
	return a.Merge(ctx, recs)
}
