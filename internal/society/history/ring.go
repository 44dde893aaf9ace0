// Package history provides the bounded, append-only logs used for long-running
// epochs. Entries beyond the retention window are evicted oldest-first while
// the total count of appended entries is preserved.
package history

// Ring is an append-only log with an optional retention limit.
// A limit of 0 or less retains everything. Ring is not safe for concurrent use.
type Ring[T any] struct {
	limit int
	items []T
	start int
	total int
}

// NewRing creates a ring retaining at most limit entries.
func NewRing[T any](limit int) *Ring[T] {
	if limit < 0 {
		limit = 0
	}
	return &Ring[T]{limit: limit}
}

// Append adds v, evicting the oldest retained entry when full.
func (r *Ring[T]) Append(v T) {
	r.total++
	if r.limit == 0 || len(r.items) < r.limit {
		r.items = append(r.items, v)
		return
	}
	r.items[r.start] = v
	r.start = (r.start + 1) % r.limit
}

// Len is the number of retained entries.
func (r *Ring[T]) Len() int { return len(r.items) }

// Total is the number of entries ever appended.
func (r *Ring[T]) Total() int { return r.total }

// Items returns the retained entries, oldest first, as a fresh slice.
func (r *Ring[T]) Items() []T {
	out := make([]T, 0, len(r.items))
	out = append(out, r.items[r.start:]...)
	out = append(out, r.items[:r.start]...)
	return out
}

// Last returns up to n of the most recent entries, oldest first.
func (r *Ring[T]) Last(n int) []T {
	items := r.Items()
	if n <= 0 {
		return nil
	}
	if n >= len(items) {
		return items
	}
	return items[len(items)-n:]
}

// Latest returns the most recent entry.
func (r *Ring[T]) Latest() (T, bool) {
	var zero T
	if len(r.items) == 0 {
		return zero, false
	}
	if r.limit == 0 || len(r.items) < r.limit {
		return r.items[len(r.items)-1], true
	}
	idx := (r.start - 1 + r.limit) % r.limit
	return r.items[idx], true
}
