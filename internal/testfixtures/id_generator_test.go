package testfixtures

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	gen := NewIDGenerator("swap")

	assert.Equal(t, "swap-1", gen.Next())
	assert.Equal(t, "swap-2", gen.Next())
	assert.Equal(t, uint64(2), gen.Issued())
}

func TestIDGeneratorIsSafeForConcurrentUse(t *testing.T) {
	gen := NewIDGenerator("")
	next := gen.NextFunc()

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
		wg   sync.WaitGroup
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := next()
			mu.Lock()
			seen[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 32)
	assert.Contains(t, seen, "id-1")
}
