package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_Sequence(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.True(t, c.IsCurrent(0))

	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
	assert.True(t, c.IsCurrent(2))
	assert.False(t, c.IsCurrent(1), "an older ticket is stale")
}

func TestClock_ConcurrentNextIsUnique(t *testing.T) {
	c := NewClock()
	seen := make(chan int64, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				seen <- c.Next()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[int64]struct{}, 1000)
	for n := range seen {
		unique[n] = struct{}{}
	}
	assert.Len(t, unique, 1000)
	assert.True(t, c.IsCurrent(1000))
}
