package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencerOrderAndReap(t *testing.T) {
	s := newSequencer()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		i := i
		s.Submit("n", func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	wg.Wait()

	for i, v := range order {
		require.Equal(t, i, v)
	}
	assert.Eventually(t, func() bool { return s.Active() == 0 }, time.Second, time.Millisecond)
}

func TestSequencerHoldBlocksNode(t *testing.T) {
	s := newSequencer()
	release, err := s.Hold(context.Background(), "n")
	require.NoError(t, err)

	ran := make(chan struct{})
	s.Submit("n", func() { close(ran) })
	other := make(chan struct{})
	s.Submit("m", func() { close(other) })

	select {
	case <-other:
	case <-time.After(time.Second):
		t.Fatal("unrelated node was blocked")
	}
	select {
	case <-ran:
		t.Fatal("job ran while node was held")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	release() // idempotent
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("job did not run after release")
	}
}

func TestSequencerHoldCanceled(t *testing.T) {
	s := newSequencer()
	release, err := s.Hold(context.Background(), "n")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = s.Hold(ctx, "n")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	assert.Eventually(t, func() bool { return s.Active() == 0 }, time.Second, time.Millisecond)
}
