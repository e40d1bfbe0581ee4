package split

import "sync"

// writeQueue runs remote writes in the background, serialized per entity
// key. Two rapid mutations of the same item therefore reach the store in
// issue order, while writes for unrelated entities proceed concurrently.
// Cross-entity ordering is not constrained.
type writeQueue struct {
	mu    sync.Mutex
	wg    sync.WaitGroup
	tails map[string]chan struct{}
}

func newWriteQueue() *writeQueue {
	return &writeQueue{tails: make(map[string]chan struct{})}
}

// enqueue schedules fn after every previously enqueued fn for the same key.
func (q *writeQueue) enqueue(key string, fn func()) {
	q.mu.Lock()
	prev := q.tails[key]
	done := make(chan struct{})
	q.tails[key] = done
	q.wg.Add(1)
	q.mu.Unlock()

	go func() {
		defer q.wg.Done()
		if prev != nil {
			<-prev
		}
		fn()

		q.mu.Lock()
		if q.tails[key] == done {
			delete(q.tails, key)
		}
		q.mu.Unlock()
		close(done)
	}()
}

// Wait blocks until every write enqueued so far has finished.
func (q *writeQueue) Wait() {
	q.wg.Wait()
}
