package idgenerator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdGenerator(t *testing.T) {
	gen := NewIdGenerator()
	require.NotNil(t, gen)

	t.Run("first id is 1 so 0 can mean no connection", func(t *testing.T) {
		assert.Equal(t, uint32(1), gen.Id())
	})
}

func TestIdGenerator_Id_sequential(t *testing.T) {
	t.Run("ids are monotonic starting from 1", func(t *testing.T) {
		gen := NewIdGenerator()
		for want := uint32(1); want <= 10; want++ {
			assert.Equal(t, want, gen.Id())
		}
	})

	t.Run("no duplicate ids in sequence", func(t *testing.T) {
		gen := NewIdGenerator()
		seen := make(map[uint32]bool)
		for i := 0; i < 100; i++ {
			id := gen.Id()
			assert.False(t, seen[id], "duplicate id %d", id)
			seen[id] = true
		}
	})
}

func TestIdGenerator_Id_concurrent(t *testing.T) {
	gen := NewIdGenerator()
	const n = 500
	ids := make([]uint32, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(idx int) {
			defer wg.Done()
			ids[idx] = gen.Id()
		}(i)
	}
	wg.Wait()

	seen := make(map[uint32]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
		assert.GreaterOrEqual(t, id, uint32(1))
		assert.LessOrEqual(t, id, uint32(n))
	}
	assert.Len(t, seen, n)
}

func TestIdGenerator_multiple_generators_independent(t *testing.T) {
	gen1 := NewIdGenerator()
	gen2 := NewIdGenerator()

	assert.Equal(t, uint32(1), gen1.Id())
	assert.Equal(t, uint32(1), gen2.Id())
	assert.Equal(t, uint32(2), gen1.Id())
	assert.Equal(t, uint32(2), gen2.Id())
}
