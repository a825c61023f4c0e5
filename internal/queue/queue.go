package queue

// Queue is a growable FIFO ring buffer.
type Queue[T any] struct {
	buf      []T
	head     int // read position
	tail     int // write position
	count    int
	capacity int

	// Stats
	totalPushed  int64
	totalPopped  int64
	totalDropped int64
	resizeCount  int
}

// Stats contains queue statistics.
type Stats struct {
	Count        int
	Capacity     int
	TotalPushed  int64
	TotalPopped  int64
	TotalDropped int64
	ResizeCount  int
}

// New creates a queue with the given initial capacity.
func New[T any](initialCapacity int) *Queue[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	return &Queue[T]{
		buf:      make([]T, initialCapacity),
		capacity: initialCapacity,
	}
}

// Push appends an item, growing the buffer at 70% capacity.
func (q *Queue[T]) Push(item T) {
	threshold := (q.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if q.count+1 >= threshold {
		q.grow()
	}

	q.buf[q.tail] = item
	q.tail = (q.tail + 1) % q.capacity
	q.count++
	q.totalPushed++
}

// Peek returns the oldest item without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.buf[q.head], true
}

// Pop removes and returns the oldest item.
func (q *Queue[T]) Pop() (T, bool) {
	if q.count == 0 {
		var zero T
		return zero, false
	}

	item := q.buf[q.head]
	var zero T
	q.buf[q.head] = zero // Clear reference for GC
	q.head = (q.head + 1) % q.capacity
	q.count--
	q.totalPopped++

	return item, true
}

// Drain removes up to max items (all when max <= 0) in FIFO order.
func (q *Queue[T]) Drain(max int) []T {
	if q.count == 0 {
		return nil
	}

	n := q.count
	if max > 0 && max < n {
		n = max
	}

	result := make([]T, 0, n)
	for i := 0; i < n; i++ {
		item, _ := q.Pop()
		result = append(result, item)
	}
	return result
}

// Items returns a copy of the queued items, oldest first.
func (q *Queue[T]) Items() []T {
	result := make([]T, 0, q.count)
	for i := 0; i < q.count; i++ {
		result = append(result, q.buf[(q.head+i)%q.capacity])
	}
	return result
}

// Clear discards every queued item. Discarded items count as dropped.
func (q *Queue[T]) Clear() {
	var zero T
	for i := 0; i < q.count; i++ {
		q.buf[(q.head+i)%q.capacity] = zero
	}
	q.totalDropped += int64(q.count)
	q.head = 0
	q.tail = 0
	q.count = 0
}

// Len returns the current number of items.
func (q *Queue[T]) Len() int {
	return q.count
}

// Stats returns queue statistics.
func (q *Queue[T]) Stats() Stats {
	return Stats{
		Count:        q.count,
		Capacity:     q.capacity,
		TotalPushed:  q.totalPushed,
		TotalPopped:  q.totalPopped,
		TotalDropped: q.totalDropped,
		ResizeCount:  q.resizeCount,
	}
}

// grow doubles the buffer capacity.
func (q *Queue[T]) grow() {
	newCapacity := q.capacity * 2
	newBuf := make([]T, newCapacity)

	if q.count > 0 {
		if q.head < q.tail {
			copy(newBuf, q.buf[q.head:q.tail])
		} else {
			// Wrapped: [head...end) + [0...tail)
			n := copy(newBuf, q.buf[q.head:])
			copy(newBuf[n:], q.buf[:q.tail])
		}
	}

	q.buf = newBuf
	q.head = 0
	q.tail = q.count
	q.capacity = newCapacity
	q.resizeCount++
}
