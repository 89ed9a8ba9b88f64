package ringchan_test

import (
	"sync"
	"testing"

	"github.com/srg/hrmon/internal/ringchan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain[T any](rc *ringchan.RingChannel[T]) []T {
	var out []T
	for rc.Len() > 0 {
		out = append(out, <-rc.C())
	}
	return out
}

func TestRingChannelKeepsNewest(t *testing.T) {
	rc := ringchan.New[int](3)
	for i := 0; i < 10; i++ {
		rc.Send(i)
	}

	assert.Equal(t, []int{7, 8, 9}, drain(rc))
	assert.EqualValues(t, 10, rc.Written())
	assert.EqualValues(t, 7, rc.Dropped())
}

func TestRingChannelReportsDrop(t *testing.T) {
	rc := ringchan.New[string](1)

	assert.False(t, rc.Send("a"))
	assert.True(t, rc.Send("b"))
	assert.Equal(t, []string{"b"}, drain(rc))
}

func TestRingChannelConcurrentProducers(t *testing.T) {
	rc := ringchan.New[int](8)

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				rc.Send(i)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 8, rc.Len())
	assert.EqualValues(t, 400, rc.Written())
	assert.EqualValues(t, 392, rc.Dropped())
}

func TestNewPanicsOnZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { ringchan.New[int](0) })
}
