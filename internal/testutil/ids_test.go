package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDs_InOrder(t *testing.T) {
	gen := NewSequentialIDs("job")

	assert.Equal(t, "job-1", gen.Generate())
	assert.Equal(t, "job-2", gen.Generate())

	gen.Reset()
	assert.Equal(t, "job-1", gen.Generate())
}

func TestSequentialIDs_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "run-1", NewSequentialIDs("").Generate())
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	gen := NewSequentialIDs("")
	const goroutines, calls = 10, 100

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				id := gen.Generate()
				mu.Lock()
				assert.False(t, seen[id], "duplicate id %s", id)
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*calls)
}
