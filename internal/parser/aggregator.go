package parser

import (
	"sort"
	"sync"

	"github.com/marker-visualizer/backend/internal/geometry"
)

// Sequence hands out piece ids. It must be reset at the start of every
// independent run so ids are reproducible.
type Sequence interface {
	Next() int
	Reset()
}

// Counter is a Sequence starting at 1.
type Counter struct {
	mu   sync.Mutex
	next int
}

// NewCounter returns a counter whose first id is 1.
func NewCounter() *Counter {
	return &Counter{next: 1}
}

func (c *Counter) Next() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next == 0 {
		c.next = 1
	}
	id := c.next
	c.next++
	return id
}

func (c *Counter) Reset() {
	c.mu.Lock()
	c.next = 1
	c.mu.Unlock()
}

// Bucket is the segment run of one piece.
type Bucket struct {
	ID       int
	Segments []geometry.Segment
}

// Aggregator groups the segment stream into per-piece buckets. Segments are
// collected into an open run and persisted under a fresh id on Flush.
type Aggregator struct {
	seq     Sequence
	buckets map[int][]geometry.Segment
	current []geometry.Segment
}

// NewAggregator creates an aggregator drawing ids from seq.
func NewAggregator(seq Sequence) *Aggregator {
	return &Aggregator{
		seq:     seq,
		buckets: make(map[int][]geometry.Segment),
	}
}

// Add appends s to the open run.
func (a *Aggregator) Add(s geometry.Segment) {
	a.current = append(a.current, s)
}

// Flush closes the open run. Empty runs are dropped without consuming an id.
func (a *Aggregator) Flush() {
	if len(a.current) == 0 {
		return
	}
	a.buckets[a.seq.Next()] = a.current
	a.current = nil
}

// Put stores segments under a caller-chosen id, replacing any earlier bucket
// with the same id. Empty runs are dropped.
func (a *Aggregator) Put(id int, segments []geometry.Segment) {
	if len(segments) == 0 {
		return
	}
	a.buckets[id] = segments
}

// Len returns the number of persisted buckets.
func (a *Aggregator) Len() int {
	return len(a.buckets)
}

// Buckets returns the persisted buckets in ascending id order.
func (a *Aggregator) Buckets() []Bucket {
	ids := make([]int, 0, len(a.buckets))
	for id := range a.buckets {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]Bucket, 0, len(ids))
	for _, id := range ids {
		out = append(out, Bucket{ID: id, Segments: a.buckets[id]})
	}
	return out
}
