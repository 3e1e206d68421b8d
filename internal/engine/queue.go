package engine

import (
	"context"
	"sync"
)

// sequencer runs jobs for the same node strictly one after another, in
// submission order. A node's worker goroutine is started on demand and
// exits once its queue drains.
type sequencer struct {
	mu     sync.Mutex
	queues map[string]*nodeQueue
}

type nodeQueue struct {
	jobs []func()
}

func newSequencer() *sequencer {
	return &sequencer{queues: make(map[string]*nodeQueue)}
}

// Submit appends job to the node's queue. Ordering is fixed when Submit
// returns.
func (s *sequencer) Submit(nodeID string, job func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[nodeID]
	if !ok {
		q = &nodeQueue{}
		s.queues[nodeID] = q
		go s.run(nodeID, q)
	}
	q.jobs = append(q.jobs, job)
}

func (s *sequencer) run(nodeID string, q *nodeQueue) {
	for {
		s.mu.Lock()
		if len(q.jobs) == 0 {
			delete(s.queues, nodeID)
			s.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs[0] = nil
		q.jobs = q.jobs[1:]
		s.mu.Unlock()

		job()
	}
}

// Hold blocks the node's queue until the returned release is called.
// Jobs submitted after Hold wait behind it.
func (s *sequencer) Hold(ctx context.Context, nodeID string) (func(), error) {
	acquired := make(chan struct{})
	done := make(chan struct{})
	s.Submit(nodeID, func() {
		close(acquired)
		<-done
	})

	var once sync.Once
	release := func() { once.Do(func() { close(done) }) }

	select {
	case <-acquired:
		return release, nil
	case <-ctx.Done():
		// The hold is still queued; let it pass straight through.
		release()
		return nil, ctx.Err()
	}
}

// Active returns the number of nodes with a live worker.
func (s *sequencer) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues)
}
