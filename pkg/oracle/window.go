package oracle

// DefaultWindowCapacity is the number of prices kept when no capacity is configured.
const DefaultWindowCapacity = 10

// PriceWindow is a fixed-capacity FIFO of fixed-point prices, oldest first.
// It is not safe for concurrent use; the owning Module serializes access.
type PriceWindow struct {
	capacity int
	values   []uint64
}

// NewPriceWindow creates an empty window. A capacity below one uses
// DefaultWindowCapacity.
func NewPriceWindow(capacity int) *PriceWindow {
	if capacity < 1 {
		capacity = DefaultWindowCapacity
	}
	return &PriceWindow{
		capacity: capacity,
		values:   make([]uint64, 0, capacity),
	}
}

// AppendOrEvict appends v, first dropping the oldest value when the window is
// full. It returns the evicted value, if any.
func (w *PriceWindow) AppendOrEvict(v uint64) (evicted uint64, ok bool) {
	if len(w.values) == w.capacity {
		evicted, ok = w.values[0], true
		copy(w.values, w.values[1:])
		w.values = w.values[:len(w.values)-1]
	}
	w.values = append(w.values, v)
	return evicted, ok
}

// Values returns a copy of the window, oldest first.
func (w *PriceWindow) Values() []uint64 {
	out := make([]uint64, len(w.values))
	copy(out, w.values)
	return out
}

// Latest returns the newest value.
func (w *PriceWindow) Latest() (uint64, bool) {
	if len(w.values) == 0 {
		return 0, false
	}
	return w.values[len(w.values)-1], true
}

// Len returns the number of values held.
func (w *PriceWindow) Len() int { return len(w.values) }

// Cap returns the capacity.
func (w *PriceWindow) Cap() int { return w.capacity }
