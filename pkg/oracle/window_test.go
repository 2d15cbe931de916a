package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestPriceWindow_AppendOrEvict(t *testing.T) {
	w := NewPriceWindow(3)

	_, evicted := w.AppendOrEvict(1)
	assert.False(t, evicted)
	w.AppendOrEvict(2)
	w.AppendOrEvict(3)
	assert.Equal(t, []uint64{1, 2, 3}, w.Values())

	old, evicted := w.AppendOrEvict(4)
	assert.True(t, evicted)
	assert.Equal(t, uint64(1), old)
	assert.Equal(t, []uint64{2, 3, 4}, w.Values())

	latest, ok := w.Latest()
	assert.True(t, ok)
	assert.Equal(t, uint64(4), latest)
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, 3, w.Cap())
}

func TestPriceWindow_ValuesIsACopy(t *testing.T) {
	w := NewPriceWindow(2)
	w.AppendOrEvict(7)

	v := w.Values()
	v[0] = 99
	assert.Equal(t, []uint64{7}, w.Values())
}

func TestPriceWindow_DefaultCapacity(t *testing.T) {
	w := NewPriceWindow(0)
	assert.Equal(t, DefaultWindowCapacity, w.Cap())

	_, ok := w.Latest()
	assert.False(t, ok)
}

// For any sequence of k appends the window holds the last min(k, N) values in
// arrival order.
func TestPriceWindow_BoundProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 16).Draw(t, "capacity")
		values := rapid.SliceOf(rapid.Uint64()).Draw(t, "values")

		w := NewPriceWindow(capacity)
		for _, v := range values {
			w.AppendOrEvict(v)
			if w.Len() > capacity {
				t.Fatalf("window length %d exceeds capacity %d", w.Len(), capacity)
			}
		}

		want := values
		if len(want) > capacity {
			want = want[len(want)-capacity:]
		}
		got := w.Values()
		if len(got) != len(want) {
			t.Fatalf("expected %d values, got %d", len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("value %d: expected %d, got %d", i, want[i], got[i])
			}
		}
	})
}
