package chart

// movingAverage is a fixed-window simple moving average over a ring buffer.
// Pushing is O(1) and never allocates after construction.
type movingAverage struct {
	window int
	values []float64
	head   int // next write position; the oldest value once full
	count  int
	sum    float64
}

func newMovingAverage(window int) *movingAverage {
	return &movingAverage{
		window: window,
		values: make([]float64, window),
	}
}

// push adds v and reports the average once the window is full.
func (m *movingAverage) push(v float64) (float64, bool) {
	if m.count == m.window {
		m.sum -= m.values[m.head]
	}
	m.values[m.head] = v
	m.sum += v
	m.head = (m.head + 1) % m.window
	if m.count < m.window {
		m.count++
	}
	if m.count < m.window {
		return 0, false
	}
	return m.sum / float64(m.window), true
}

// MovingAverage returns the simple moving average of prices. Element i of
// the result belongs to prices[i+window-1]; it is empty when there are
// fewer than window prices or window < 1.
func MovingAverage(prices []float64, window int) []float64 {
	if window < 1 || len(prices) < window {
		return []float64{}
	}
	m := newMovingAverage(window)
	out := make([]float64, 0, len(prices)-window+1)
	for _, p := range prices {
		if avg, ok := m.push(p); ok {
			out = append(out, avg)
		}
	}
	return out
}
