package scheduler

import (
	"container/heap"
	"time"
)

// entry is one armed reminder timer.
type entry struct {
	id         string
	due        time.Time
	overdue    bool
	redelivery bool
	index      int
}

// queue is a min-heap of entries ordered by due instant, then id.
type queue []*entry

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].id < q[j].id
	}
	return q[i].due.Before(q[j].due)
}

func (q queue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *queue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

func (q queue) peek() (*entry, bool) {
	if len(q) == 0 {
		return nil, false
	}
	return q[0], true
}

var _ heap.Interface = (*queue)(nil)
