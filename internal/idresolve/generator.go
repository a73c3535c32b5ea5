package idresolve

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// IDGenerator mints permanent identities. Implementations must be safe for
// concurrent use and never return the same id twice.
type IDGenerator interface {
	NewID(kind string) string
}

// UUIDGenerator yields "<kind>_<uuid v4>".
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(kind string) string {
	return prefix(kind) + uuid.NewString()
}

const (
	// 2024-01-01T00:00:00Z
	snowflakeEpoch int64 = 1704067200000

	nodeBits = 10
	seqBits  = 12
	maxNode  = 1<<nodeBits - 1
	seqMask  = 1<<seqBits - 1
)

// SnowflakeGenerator yields "<kind>_<base36 id>", shorter than a uuid and
// ordered by creation time. An id packs milliseconds since 2024, the node and
// a per-millisecond sequence. When the clock steps back or a millisecond runs
// out of sequence numbers the generator borrows from the next millisecond.
type SnowflakeGenerator struct {
	node int64
	last atomic.Int64 // ms<<seqBits | seq of the previous id
	now  func() int64
}

func NewSnowflakeGenerator(node int64) (*SnowflakeGenerator, error) {
	if node < 0 || node > maxNode {
		return nil, fmt.Errorf("snowflake node %d out of range [0, %d]", node, maxNode)
	}
	return &SnowflakeGenerator{node: node, now: func() int64 { return time.Now().UnixMilli() }}, nil
}

func (g *SnowflakeGenerator) NewID(kind string) string {
	return prefix(kind) + strconv.FormatInt(g.next(), 36)
}

func (g *SnowflakeGenerator) next() int64 {
	for {
		prev := g.last.Load()
		cur := (g.now() - snowflakeEpoch) << seqBits
		if cur <= prev {
			cur = prev + 1
		}
		if g.last.CompareAndSwap(prev, cur) {
			ms, seq := cur>>seqBits, cur&seqMask
			return ms<<(nodeBits+seqBits) | g.node<<seqBits | seq
		}
	}
}

func prefix(kind string) string {
	if kind == "" {
		return ""
	}
	return strings.ToLower(kind) + "_"
}
