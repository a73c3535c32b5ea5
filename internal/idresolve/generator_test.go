package idresolve

import (
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, id string) int64 {
	t.Helper()
	_, raw, ok := strings.Cut(id, "_")
	require.True(t, ok, id)
	v, err := strconv.ParseInt(raw, 36, 64)
	require.NoError(t, err)
	return v
}

func TestSnowflakeStaysOrderedWhenClockStepsBack(t *testing.T) {
	g, err := NewSnowflakeGenerator(3)
	require.NoError(t, err)
	clock := []int64{snowflakeEpoch + 100, snowflakeEpoch + 90, snowflakeEpoch + 101}
	i := 0
	g.now = func() int64 {
		v := clock[i]
		if i < len(clock)-1 {
			i++
		}
		return v
	}

	a, b, c := decode(t, g.NewID("npc")), decode(t, g.NewID("npc")), decode(t, g.NewID("npc"))
	assert.Less(t, a, b)
	assert.Less(t, b, c)
	assert.EqualValues(t, 3, (a>>seqBits)&maxNode)
}

func TestSnowflakeUniqueUnderContention(t *testing.T) {
	g, err := NewSnowflakeGenerator(1)
	require.NoError(t, err)

	const workers, each = 8, 500
	ids := make(chan string, workers*each)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				ids <- g.NewID("item")
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{}, workers*each)
	for id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestNewSnowflakeRejectsBadNode(t *testing.T) {
	_, err := NewSnowflakeGenerator(maxNode + 1)
	assert.Error(t, err)
	_, err = NewSnowflakeGenerator(-1)
	assert.Error(t, err)
}
