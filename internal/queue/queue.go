package queue

// Item is one unit of crawl work. Items are never mutated after creation.
type Item struct {
	// URL is normalized, absolute and http(s).
	URL string

	// Depth is the BFS depth, 0 for the seed.
	Depth int

	// ParentURL is the page the link was found on; empty for the seed.
	ParentURL string
}

// Queue is a FIFO of Items.
type Queue interface {
	Enqueue(item Item)
	EnqueueBatch(items []Item)
	Dequeue() (Item, bool)
	IsEmpty() bool
	Size() int
}

// VisitedSet records URLs that have been dequeued for processing.
type VisitedSet interface {
	// Add inserts url and reports whether it was absent.
	// The check and the insert happen atomically.
	Add(url string) bool
	Contains(url string) bool
	Len() int
}

// FIFO is an in-memory Queue backed by a slice.
// It is owned by a single crawl and is not safe for concurrent use.
type FIFO struct {
	items []Item
	head  int
}

// NewFIFO returns an empty FIFO.
func NewFIFO() *FIFO {
	return &FIFO{}
}

// Enqueue appends item to the tail.
func (q *FIFO) Enqueue(item Item) {
	q.items = append(q.items, item)
}

// EnqueueBatch appends items to the tail in order.
func (q *FIFO) EnqueueBatch(items []Item) {
	q.items = append(q.items, items...)
}

// Dequeue removes and returns the head item.
func (q *FIFO) Dequeue() (Item, bool) {
	if q.head >= len(q.items) {
		return Item{}, false
	}
	item := q.items[q.head]
	q.items[q.head] = Item{}
	q.head++

	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head > 64 && q.head*2 >= len(q.items) {
		q.items = append([]Item(nil), q.items[q.head:]...)
		q.head = 0
	}
	return item, true
}

// IsEmpty reports whether no items are queued.
func (q *FIFO) IsEmpty() bool {
	return q.Size() == 0
}

// Size returns the number of queued items.
func (q *FIFO) Size() int {
	return len(q.items) - q.head
}

// MemoryVisited is an in-memory VisitedSet.
// It is owned by a single crawl and is not safe for concurrent use.
type MemoryVisited struct {
	seen map[string]struct{}
}

// NewMemoryVisited returns an empty set.
func NewMemoryVisited() *MemoryVisited {
	return &MemoryVisited{seen: make(map[string]struct{})}
}

// Add inserts url and reports whether it was absent.
func (v *MemoryVisited) Add(url string) bool {
	if _, ok := v.seen[url]; ok {
		return false
	}
	v.seen[url] = struct{}{}
	return true
}

// Contains reports whether url was added.
func (v *MemoryVisited) Contains(url string) bool {
	_, ok := v.seen[url]
	return ok
}

// Len returns the number of URLs in the set.
func (v *MemoryVisited) Len() int {
	return len(v.seen)
}
