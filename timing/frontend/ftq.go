package frontend

import "github.com/sarchlab/o3sim/timing/fetch"

// FTQ is the bounded per-thread fetch-target queue between the
// branch-address calculator and the fetch unit. The head is the demand
// target; entries past it are prefetch candidates.
type FTQ struct {
	capacity int
	entries  [][]*FetchTarget
	valid    []bool
}

// NewFTQ builds a queue of the given per-thread capacity.
func NewFTQ(numThreads, capacity int) *FTQ {
	q := &FTQ{
		capacity: capacity,
		entries:  make([][]*FetchTarget, numThreads),
		valid:    make([]bool, numThreads),
	}
	return q
}

// IsHeadReady reports whether the thread has a demand target available.
func (q *FTQ) IsHeadReady(tid fetch.ThreadID) bool {
	return q.valid[tid] && len(q.entries[tid]) > 0
}

// IsEmpty reports whether the thread's queue holds no targets.
func (q *FTQ) IsEmpty(tid fetch.ThreadID) bool {
	return len(q.entries[tid]) == 0
}

// IsValid reports whether the thread's queue survived the last squash.
func (q *FTQ) IsValid(tid fetch.ThreadID) bool {
	return q.valid[tid]
}

// IsFull reports whether the thread's queue is at capacity.
func (q *FTQ) IsFull(tid fetch.ThreadID) bool {
	return len(q.entries[tid]) >= q.capacity
}

// Size returns the thread's current queue depth.
func (q *FTQ) Size(tid fetch.ThreadID) int {
	return len(q.entries[tid])
}

// ReadHead returns the demand target, nil when none is available.
func (q *FTQ) ReadHead(tid fetch.ThreadID) fetch.FetchTarget {
	if !q.IsHeadReady(tid) {
		return nil
	}
	return q.entries[tid][0]
}

// ReadNextHead returns the target one past the head, nil when the queue
// holds fewer than two targets.
func (q *FTQ) ReadNextHead(tid fetch.ThreadID) fetch.FetchTarget {
	if !q.valid[tid] || len(q.entries[tid]) < 2 {
		return nil
	}
	return q.entries[tid][1]
}

// FindAfterHead returns the first target past the head satisfying pred,
// nil when none does.
func (q *FTQ) FindAfterHead(tid fetch.ThreadID, pred func(fetch.FetchTarget) bool) fetch.FetchTarget {
	if !q.valid[tid] || len(q.entries[tid]) < 2 {
		return nil
	}
	for _, t := range q.entries[tid][1:] {
		if pred(t) {
			return t
		}
	}
	return nil
}

// UpdateHead retires the demand target. It returns false when there was no
// head to retire.
func (q *FTQ) UpdateHead(tid fetch.ThreadID) bool {
	if !q.IsHeadReady(tid) {
		return false
	}
	head := q.entries[tid][0]
	head.invalidate()
	q.entries[tid] = q.entries[tid][1:]
	return true
}

// Enqueue appends a target. It returns false when the queue is full.
func (q *FTQ) Enqueue(tid fetch.ThreadID, t *FetchTarget) bool {
	if q.IsFull(tid) {
		return false
	}
	q.entries[tid] = append(q.entries[tid], t)
	q.valid[tid] = true
	return true
}

// Invalidate squashes the thread's queue. Detached entries stay marked
// invalid so late translation or prefetch completions against them are
// discarded rather than resurrected.
func (q *FTQ) Invalidate(tid fetch.ThreadID) {
	for _, t := range q.entries[tid] {
		t.invalidate()
	}
	q.entries[tid] = nil
	q.valid[tid] = false
}
