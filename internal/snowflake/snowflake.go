// Package snowflake generates time-sortable 63-bit entity identifiers.
package snowflake

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// Epoch is the custom epoch (2024-07-22T12:00:00Z) in Unix milliseconds.
const Epoch int64 = 1_721_638_800_000

// Bit layout: 41 bits of milliseconds since Epoch, 5 bits worker id,
// 5 bits process-derived shard id, 12 bits per-millisecond sequence.
const (
	timestampShift = 22
	workerShift    = 17
	shardShift     = 12
	sequenceMask   = 0xFFF
)

// ID is a globally unique, numerically sortable entity identifier.
// It serializes as a decimal string so JavaScript clients keep full precision.
type ID int64

func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

// Millis returns the creation time in Unix milliseconds.
func (id ID) Millis() int64 { return int64(id)>>timestampShift + Epoch }

// Time returns the creation time of the identifier.
func (id ID) Time() time.Time { return time.UnixMilli(id.Millis()) }

// Worker returns the worker id component.
func (id ID) Worker() int64 { return int64(id) >> workerShift & 0x1F }

// Shard returns the process-derived shard component.
func (id ID) Shard() int64 { return int64(id) >> shardShift & 0x1F }

// Sequence returns the per-millisecond sequence component.
func (id ID) Sequence() int64 { return int64(id) & sequenceMask }

// MarshalText encodes the ID as its decimal representation. Implementing
// TextMarshaler also makes IDs usable as JSON object keys.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalJSON accepts either a decimal string or a bare integer.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// not a string, try a raw number
		var n int64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("snowflake: want 64-bit integer or decimal string, got %s", data)
		}
		*id = ID(n)
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("snowflake: parse %q: %w", s, err)
	}
	*id = ID(n)
	return nil
}

// UnmarshalText parses the decimal representation.
func (id *ID) UnmarshalText(data []byte) error {
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	*id = ID(n)
	return nil
}

// Generator produces strictly increasing IDs for a single worker. It is safe
// for concurrent use; all mutable state sits behind a short-held mutex and
// Generate never performs I/O.
type Generator struct {
	mu     sync.Mutex
	worker int64
	shard  int64
	lastMs int64
	seq    int64
}

// NewGenerator constructs a generator for the given worker id (low 5 bits
// are used). The shard id is derived from the process id.
func NewGenerator(workerID uint8) *Generator {
	return &Generator{
		worker: int64(workerID) & 0x1F,
		shard:  int64(os.Getpid()) & 0x1F,
	}
}

// Generate returns the next identifier. The sequence counter resets each
// millisecond and wraps modulo 4096 without waiting; under extreme
// same-millisecond load on one worker this can collide. Clock regression is
// not defended against.
func (g *Generator) Generate() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli()
	if now != g.lastMs {
		g.lastMs = now
		g.seq = 0
	} else {
		g.seq++
	}

	elapsed := now - Epoch
	return ID(elapsed<<timestampShift |
		g.worker<<workerShift |
		g.shard<<shardShift |
		g.seq&sequenceMask)
}
