package engine

import (
	"context"
	"sync"
	"time"

	"capstan/internal/api"
)

// task is one scheduled reconciliation of an Application.
type task struct {
	// App is the Application name, which is also the queue key.
	App string

	// Reason says why the reconciliation was scheduled.
	Reason api.TriggerReason

	// Attempt is the 1-based consecutive attempt number. It only climbs
	// across transient failures; success and spec changes reset it.
	Attempt int

	// Revision optionally pins the revision to sync (manual triggers).
	Revision string

	// Prune forces pruning for this one attempt regardless of policy.
	Prune bool

	// remove marks the teardown task that prunes owned resources after
	// the Application definition was deleted.
	remove bool
}

// workQueue is a deduplicating work queue keyed by Application name.
//
// Three sets realize the one-sync-per-Application invariant: queued
// (waiting in FIFO order), processing (a worker holds it), and pending
// (arrived while processing; at most one per key). Enqueueing a queued
// key is a drop; enqueueing a processing key parks it as the key's
// pending slot; Done re-queues the pending slot.
type workQueue struct {
	mu sync.Mutex

	// queue holds tasks in FIFO order
	queue []task

	// queued tracks keys currently waiting in the queue
	queued map[string]bool

	// processing tracks keys currently held by a worker
	processing map[string]bool

	// pending holds the single coalesced task per processing key
	pending map[string]task

	// cond is used for blocking Get operations
	cond *sync.Cond

	// shuttingDown indicates the queue is stopping
	shuttingDown bool
}

func newWorkQueue() *workQueue {
	q := &workQueue{
		queue:      make([]task, 0),
		queued:     make(map[string]bool),
		processing: make(map[string]bool),
		pending:    make(map[string]task),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Add schedules a task and reports whether it was accepted. Redundant
// triggers collapse: a key already waiting keeps its original task, a
// key being processed keeps at most one pending re-evaluation. Two
// tasks carry state that must not be lost and therefore replace instead
// of dropping: a removal supersedes whatever holds its slot, and a
// manual task replaces a parked non-removal so its revision pin and
// prune flag survive.
func (q *workQueue) Add(t task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shuttingDown {
		return false
	}

	if q.processing[t.App] {
		if parked, ok := q.pending[t.App]; ok && !t.remove {
			if parked.remove || t.Reason != api.TriggerManual {
				return false
			}
		}
		q.pending[t.App] = t
		return true
	}

	if q.queued[t.App] {
		if !t.remove {
			return false
		}
		for i := range q.queue {
			if q.queue[i].App == t.App {
				q.queue[i] = t
				break
			}
		}
		return true
	}

	q.queued[t.App] = true
	q.queue = append(q.queue, t)
	q.cond.Signal()
	return true
}

// Get retrieves the next task, blocking if necessary. The boolean is
// false when the queue shut down or ctx was canceled.
func (q *workQueue) Get(ctx context.Context) (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.queue) == 0 && !q.shuttingDown {
		select {
		case <-ctx.Done():
			return task{}, false
		default:
		}

		// A helper goroutine races context cancellation against a normal
		// wakeup: cancellation broadcasts so the Wait below returns, and
		// closing done ends the helper when the wakeup came from Add or
		// Shutdown instead.
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				q.mu.Lock()
				q.cond.Broadcast()
				q.mu.Unlock()
			case <-done:
			}
		}()

		q.cond.Wait()
		close(done)

		select {
		case <-ctx.Done():
			return task{}, false
		default:
		}
	}

	if q.shuttingDown && len(q.queue) == 0 {
		return task{}, false
	}

	t := q.queue[0]
	q.queue = q.queue[1:]
	delete(q.queued, t.App)
	q.processing[t.App] = true

	return t, true
}

// Done marks a task as completed and re-queues the key's pending task
// if one was parked while it ran.
func (q *workQueue) Done(t task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.processing, t.App)

	if parked, ok := q.pending[t.App]; ok {
		delete(q.pending, t.App)
		q.queued[parked.App] = true
		q.queue = append(q.queue, parked)
		q.cond.Signal()
	}
}

// Len returns the number of tasks waiting in the queue.
func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Shutdown stops the queue and wakes every blocked Get.
func (q *workQueue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.shuttingDown = true
	q.cond.Broadcast()
}

// delayedQueue wraps the work queue with delayed scheduling. Each key
// holds at most one timer: the next scheduled attempt, whether that is
// a backed-off retry or a routine resync. Re-scheduling replaces it.
type delayedQueue struct {
	queue      *workQueue
	mu         sync.Mutex
	delayedMap map[string]*time.Timer
	stopCh     chan struct{}
}

func newDelayedQueue() *delayedQueue {
	return &delayedQueue{
		queue:      newWorkQueue(),
		delayedMap: make(map[string]*time.Timer),
		stopCh:     make(chan struct{}),
	}
}

// Add schedules a task immediately.
func (d *delayedQueue) Add(t task) bool {
	return d.queue.Add(t)
}

// AddAfter schedules a task after a delay, replacing any timer already
// set for the same key.
func (d *delayedQueue) AddAfter(t task, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.delayedMap[t.App]; ok {
		timer.Stop()
	}

	d.delayedMap[t.App] = time.AfterFunc(delay, func() {
		d.mu.Lock()
		delete(d.delayedMap, t.App)
		d.mu.Unlock()

		select {
		case <-d.stopCh:
			return
		default:
			d.queue.Add(t)
		}
	})
}

// Cancel drops the delayed task for a key, if one is scheduled.
func (d *delayedQueue) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.delayedMap[key]; ok {
		timer.Stop()
		delete(d.delayedMap, key)
	}
}

// Get retrieves the next task.
func (d *delayedQueue) Get(ctx context.Context) (task, bool) {
	return d.queue.Get(ctx)
}

// Done marks a task as completed.
func (d *delayedQueue) Done(t task) {
	d.queue.Done(t)
}

// Len returns the immediate queue length.
func (d *delayedQueue) Len() int {
	return d.queue.Len()
}

// Shutdown stops the queue and cancels pending timers.
func (d *delayedQueue) Shutdown() {
	close(d.stopCh)

	d.mu.Lock()
	for _, timer := range d.delayedMap {
		timer.Stop()
	}
	d.delayedMap = make(map[string]*time.Timer)
	d.mu.Unlock()

	d.queue.Shutdown()
}
