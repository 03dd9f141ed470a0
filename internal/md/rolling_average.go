package md

// RollingAverage keeps the most recent prices in a fixed-size ring and
// maintains their running sum so the mean is available in O(1).
type RollingAverage struct {
	values []float64
	size   int
	index  int
	filled bool
	sum    float64
}

func NewRollingAverage(size int) *RollingAverage {
	if size <= 0 {
		panic("md: rolling average capacity must be positive")
	}
	return &RollingAverage{
		values: make([]float64, size),
		size:   size,
	}
}

// Push adds price to the window, evicting the oldest entry once the window
// is full, and returns the mean of the prices currently held.
func (r *RollingAverage) Push(price float64) float64 {
	if r.filled {
		r.sum -= r.values[r.index]
	}
	r.values[r.index] = price
	r.sum += price
	r.index = (r.index + 1) % r.size
	if r.index == 0 {
		r.filled = true
	}
	return r.sum / float64(r.Len())
}

func (r *RollingAverage) Len() int {
	if r.filled {
		return r.size
	}
	return r.index
}

func (r *RollingAverage) Capacity() int {
	return r.size
}

func (r *RollingAverage) Sum() float64 {
	return r.sum
}

// Average reports false while the window is still empty.
func (r *RollingAverage) Average() (float64, bool) {
	length := r.Len()
	if length == 0 {
		return 0, false
	}
	return r.sum / float64(length), true
}

// Values returns the window contents, oldest first.
func (r *RollingAverage) Values() []float64 {
	length := r.Len()
	result := make([]float64, 0, length)
	if length == 0 {
		return result
	}
	if r.filled {
		result = append(result, r.values[r.index:]...)
	}
	result = append(result, r.values[:r.index]...)
	return result
}
