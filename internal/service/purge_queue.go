package service

import (
	"container/heap"
	"sync"
	"time"
)

// PurgeQueue is a single time-ordered delay queue for disconnect-grace
// removals: one goroutine, one timer, entries keyed by logical user id and
// cancellable on reconnect. This replaces spawning a timer per disconnect,
// which does not hold up under churn.
type PurgeQueue struct {
	mu      sync.Mutex
	heap    purgeHeap
	pending map[string]*purgeEntry // userID -> live entry

	fire func(userID, roomCode string)
	wake chan struct{}
	done chan struct{}
}

type purgeEntry struct {
	userID   string
	roomCode string
	due      time.Time
	canceled bool
}

func NewPurgeQueue(fire func(userID, roomCode string)) *PurgeQueue {
	q := &PurgeQueue{
		pending: make(map[string]*purgeEntry),
		fire:    fire,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// Schedule queues a purge for userID after delay. Re-scheduling the same
// user replaces the previous deadline.
func (q *PurgeQueue) Schedule(userID, roomCode string, delay time.Duration) {
	q.mu.Lock()
	if old, ok := q.pending[userID]; ok {
		old.canceled = true // stale heap entry, skipped when popped
	}
	e := &purgeEntry{userID: userID, roomCode: roomCode, due: time.Now().Add(delay)}
	q.pending[userID] = e
	heap.Push(&q.heap, e)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Cancel drops any pending purge for userID.
func (q *PurgeQueue) Cancel(userID string) {
	q.mu.Lock()
	if e, ok := q.pending[userID]; ok {
		e.canceled = true
		delete(q.pending, userID)
	}
	q.mu.Unlock()
}

func (q *PurgeQueue) Stop() {
	close(q.done)
}

func (q *PurgeQueue) run() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		q.mu.Lock()
		var wait time.Duration = time.Hour
		if len(q.heap) > 0 {
			wait = time.Until(q.heap[0].due)
		}
		q.mu.Unlock()

		if wait <= 0 {
			q.fireDue()
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-q.done:
			return
		case <-q.wake:
		case <-timer.C:
			q.fireDue()
		}
	}
}

// fireDue pops every entry whose deadline passed and runs the callback
// outside the lock.
func (q *PurgeQueue) fireDue() {
	now := time.Now()
	var ready []*purgeEntry

	q.mu.Lock()
	for len(q.heap) > 0 && !q.heap[0].due.After(now) {
		e := heap.Pop(&q.heap).(*purgeEntry)
		if e.canceled {
			continue
		}
		delete(q.pending, e.userID)
		ready = append(ready, e)
	}
	q.mu.Unlock()

	for _, e := range ready {
		q.fire(e.userID, e.roomCode)
	}
}

type purgeHeap []*purgeEntry

func (h purgeHeap) Len() int            { return len(h) }
func (h purgeHeap) Less(i, j int) bool  { return h[i].due.Before(h[j].due) }
func (h purgeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *purgeHeap) Push(x interface{}) { *h = append(*h, x.(*purgeEntry)) }
func (h *purgeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
