package utils

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type Records [][]byte

func TestRecordQueue_Drain(t *testing.T) {
	const N = 1 << 10
	const K = 1 << 4

	queue := NewRecordQueue[Records](0)
	ctx := context.Background()

	for k := 0; k < K; k++ {
		go func(k int) {
			i := uint64(k) << 32
			for n := uint64(0); n < N; n++ {
				var b [8]byte
				binary.LittleEndian.PutUint64(b[:], i|n)
				err := queue.Drain(ctx, Records{b[:]})
				assert.Nil(t, err)
			}
		}(k)
	}

	check := [K]int{}
	for i := 0; i < N*K; {
		nums, err := queue.Feed(ctx)
		assert.Nil(t, err)
		for _, num := range nums {
			assert.Equal(t, 8, len(num))
			j := binary.LittleEndian.Uint64(num)
			k := int(j >> 32)
			n := int(j & 0xffffffff)
			assert.Equal(t, check[k], n)
			check[k] = n + 1
			i++
		}
	}

	assert.Nil(t, queue.Close())
	assert.Equal(t, ErrClosed, queue.Drain(ctx, Records{{'a'}}))
	_, err := queue.Feed(ctx)
	assert.Equal(t, ErrClosed, err)
}

func TestRecordQueue_Overflow(t *testing.T) {
	queue := NewRecordQueue[Records](4)
	ctx := context.Background()
	assert.NoError(t, queue.Drain(ctx, Records{[]byte("abc")}))
	assert.Equal(t, ErrOverflow, queue.Drain(ctx, Records{[]byte("de")}))
	assert.Equal(t, 3, queue.Size())

	// closed queues still hand out what they hold
	assert.NoError(t, queue.Close())
	recs, err := queue.Feed(ctx)
	assert.NoError(t, err)
	assert.Equal(t, Records{[]byte("abc")}, recs)
}

func TestRecordQueue_FeedCancel(t *testing.T) {
	queue := NewRecordQueue[Records](0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := queue.Feed(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
