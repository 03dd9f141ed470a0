package md

import (
	"math"
	"testing"
)

func TestRollingAverageMean(t *testing.T) {
	window := NewRollingAverage(3)
	if got := window.Push(100); got != 100 {
		t.Fatalf("expected 100, got %.4f", got)
	}
	if got := window.Push(200); got != 150 {
		t.Fatalf("expected 150, got %.4f", got)
	}
	if got := window.Push(300); got != 200 {
		t.Fatalf("expected 200, got %.4f", got)
	}
}

func TestRollingAverageEvictsOldest(t *testing.T) {
	window := NewRollingAverage(2)
	window.Push(100)
	window.Push(200)

	sumBefore := window.Sum()
	got := window.Push(300)
	if window.Len() != 2 {
		t.Fatalf("expected len 2, got %d", window.Len())
	}
	if got != 250 {
		t.Fatalf("expected average 250, got %.4f", got)
	}
	if window.Sum() != sumBefore-100+300 {
		t.Fatalf("expected sum to drop the evicted 100 before adding 300, got %.4f", window.Sum())
	}
	values := window.Values()
	if values[0] != 200 || values[1] != 300 {
		t.Fatalf("unexpected window contents %v", values)
	}
}

func TestRollingAverageMatchesMeanOfTail(t *testing.T) {
	prices := []float64{1.25, 0.5, 3, 7.75, 2, 2, 9.5, 0.25, 4, 6}
	for capacity := 1; capacity <= 12; capacity++ {
		window := NewRollingAverage(capacity)
		for n, price := range prices {
			got := window.Push(price)
			start := n + 1 - min(n+1, capacity)
			sum := 0.0
			for _, v := range prices[start : n+1] {
				sum += v
			}
			want := sum / float64(n+1-start)
			if math.Abs(got-want) > 1e-9 {
				t.Fatalf("capacity=%d n=%d: expected %.6f, got %.6f", capacity, n+1, want, got)
			}
		}
	}
}

func TestRollingAverageEmpty(t *testing.T) {
	window := NewRollingAverage(5)
	if _, ok := window.Average(); ok {
		t.Fatalf("expected empty window to report no average")
	}
	if len(window.Values()) != 0 {
		t.Fatalf("expected no values")
	}
}

func TestRollingAverageRejectsZeroCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for zero capacity")
		}
	}()
	NewRollingAverage(0)
}
