/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package workerpool

import "sync"

// message is either a job or a terminate signal (job == nil).
type message struct {
	job Job
}

func (m message) isTerminate() bool {
	return m.job == nil
}

// jobQueue is an unbounded FIFO queue of messages that blocks readers while it's empty.
type jobQueue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []message
	head  int
}

func newJobQueue() *jobQueue {
	q := &jobQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *jobQueue) push(m message) {
	q.mu.Lock()
	q.items = append(q.items, m)
	q.mu.Unlock()
	q.cond.Signal()
}

// pop blocks until a message is available.
func (q *jobQueue) pop() message {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.head == len(q.items) {
		q.cond.Wait()
	}
	m := q.items[q.head]
	q.items[q.head] = message{}
	q.head++
	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head*2 > len(q.items):
		// Consumed prefix dominates the backlog, move live messages to the front.
		n := copy(q.items, q.items[q.head:])
		for i := n; i < len(q.items); i++ {
			q.items[i] = message{}
		}
		q.items = q.items[:n]
		q.head = 0
	}
	return m
}

func (q *jobQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
