package utils

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("[arena] feed/drain queue is closed")
var ErrOverflow = errors.New("[arena] feed/drain queue is overflowed")

// RecordQueue is a bounded FIFO of byte records. Drain appends and
// never blocks; Feed blocks until there is something to take, the
// queue is closed or ctx is done. A closed queue still feeds out
// whatever it holds before reporting ErrClosed.
type RecordQueue[T ~[][]byte] struct {
	lock    sync.Mutex
	recs    T
	size    int
	maxSize int
	closed  bool
	signal  chan struct{}
}

func NewRecordQueue[T ~[][]byte](maxSize int) *RecordQueue[T] {
	return &RecordQueue[T]{
		maxSize: maxSize,
		signal:  make(chan struct{}, 1),
	}
}

func (q *RecordQueue[T]) Drain(ctx context.Context, recs T) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.closed {
		return ErrClosed
	}
	add := 0
	for _, rec := range recs {
		add += len(rec)
	}
	if q.maxSize > 0 && q.size+add > q.maxSize {
		return ErrOverflow
	}
	q.recs = append(q.recs, recs...)
	q.size += add
	q.wake()
	return nil
}

func (q *RecordQueue[T]) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *RecordQueue[T]) Feed(ctx context.Context) (recs T, err error) {
	for {
		q.lock.Lock()
		if len(q.recs) > 0 {
			recs, q.recs, q.size = q.recs, nil, 0
			q.lock.Unlock()
			return recs, nil
		}
		closed := q.closed
		q.lock.Unlock()
		if closed {
			return nil, ErrClosed
		}
		select {
		case <-q.signal:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *RecordQueue[T]) Size() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.size
}

func (q *RecordQueue[T]) Close() error {
	q.lock.Lock()
	q.closed = true
	q.wake()
	q.lock.Unlock()
	return nil
}
