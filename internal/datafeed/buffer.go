package datafeed

import (
	"github.com/openfx/trend-trader/pkg/types"
)

// Buffer is a fixed-capacity circular buffer of candles for one symbol.
// Appending past capacity evicts the oldest candle.
type Buffer struct {
	capacity int
	data     []types.OHLCV
	start    int
	size     int
}

// NewBuffer creates a buffer holding at most capacity candles.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		capacity: capacity,
		data:     make([]types.OHLCV, capacity),
	}
}

// Append adds a candle. A candle with the same timestamp as the newest
// entry replaces it (the venue re-reports the forming candle).
func (b *Buffer) Append(candle types.OHLCV) {
	if b.size > 0 {
		last := b.at(b.size - 1)
		if candle.Timestamp.Equal(last.Timestamp) {
			b.data[(b.start+b.size-1)%b.capacity] = candle
			return
		}
		if candle.Timestamp.Before(last.Timestamp) {
			return // out-of-order backfill, already have newer data
		}
	}

	if b.size < b.capacity {
		b.data[(b.start+b.size)%b.capacity] = candle
		b.size++
		return
	}
	b.data[b.start] = candle
	b.start = (b.start + 1) % b.capacity
}

// Window returns the buffered candles oldest-first as a fresh slice.
func (b *Buffer) Window() []types.OHLCV {
	out := make([]types.OHLCV, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.at(i)
	}
	return out
}

// Last returns the newest candle, if any.
func (b *Buffer) Last() (types.OHLCV, bool) {
	if b.size == 0 {
		return types.OHLCV{}, false
	}
	return b.at(b.size - 1), true
}

// Len returns the number of buffered candles.
func (b *Buffer) Len() int {
	return b.size
}

func (b *Buffer) at(i int) types.OHLCV {
	return b.data[(b.start+i)%b.capacity]
}
