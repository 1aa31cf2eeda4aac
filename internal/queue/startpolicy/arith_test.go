package startpolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCeilDiv(t *testing.T) {
	assert.Equal(t, int64(40), ceilDiv(10000, 250))
	assert.Equal(t, int64(4), ceilDiv(10, 3))
	assert.Equal(t, int64(0), ceilDiv(0, 3))
}

func TestChunkRangeContiguousDisjoint(t *testing.T) {
	ranges := chunkRange(0, 10000, 250)
	assert.Len(t, ranges, 40)
	assert.Equal(t, int64(1), ranges[0].first)
	assert.Equal(t, int64(250), ranges[0].last)
	assert.Equal(t, int64(9751), ranges[39].first)
	assert.Equal(t, int64(10000), ranges[39].last)
	for i := 1; i < len(ranges); i++ {
		assert.Equal(t, ranges[i-1].last+1, ranges[i].first, "gap or overlap at chunk %d", i)
	}
}

func TestChunkFilesRemainder(t *testing.T) {
	chunks := chunkFiles(25, 10)
	assert.Equal(t, []fileChunk{{0, 10}, {10, 10}, {20, 5}}, chunks)
}
