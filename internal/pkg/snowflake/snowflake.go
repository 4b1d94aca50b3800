// Package snowflake generates time-ordered 64-bit message IDs: 41 bits of
// milliseconds since a custom epoch, 10 bits of worker ID, 12 bits of
// per-millisecond sequence. IDs from one generator are strictly increasing,
// which gives messages a stable insertion-order tie-break when two rows
// share a created_at timestamp.
package snowflake

import (
	"errors"
	"sync"
	"time"
)

const (
	// Epoch is the custom epoch (January 1, 2024 00:00:00 UTC) in milliseconds.
	Epoch int64 = 1704067200000

	workerIDBits uint8 = 10
	sequenceBits uint8 = 12

	maxWorkerID  int64 = -1 ^ (-1 << workerIDBits)
	sequenceMask int64 = -1 ^ (-1 << sequenceBits)

	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

var (
	ErrInvalidWorkerID     = errors.New("worker ID exceeds maximum value")
	ErrClockMovedBackwards = errors.New("clock moved backwards")
)

// Generator produces snowflake IDs. Safe for concurrent use.
type Generator struct {
	mu sync.Mutex

	workerID      int64
	sequence      int64
	lastTimestamp int64
}

// NewGenerator creates a generator for the given worker ID.
func NewGenerator(workerID int64) (*Generator, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, ErrInvalidWorkerID
	}
	return &Generator{
		workerID:      workerID,
		lastTimestamp: -1,
	}, nil
}

// NextID returns the next ID. When the per-millisecond sequence overflows it
// spins until the next millisecond.
func (g *Generator) NextID() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli()
	if now < g.lastTimestamp {
		return 0, ErrClockMovedBackwards
	}

	if now == g.lastTimestamp {
		g.sequence = (g.sequence + 1) & sequenceMask
		if g.sequence == 0 {
			for now <= g.lastTimestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastTimestamp = now

	id := (now-Epoch)<<timestampShift |
		g.workerID<<workerIDShift |
		g.sequence
	return id, nil
}

// Timestamp extracts the time component of an ID.
func Timestamp(id int64) time.Time {
	ms := (id >> timestampShift) + Epoch
	return time.UnixMilli(ms)
}
