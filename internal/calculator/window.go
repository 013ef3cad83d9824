package calculator

import "math"

// rollingWindow is a fixed-size trailing window over a stream of optional values.
// It keeps a running sum and sum of squares so a push is amortized O(1); both are
// rebuilt from the ring every size pushes to drop accumulated rounding error.
type rollingWindow struct {
	size    int
	values  []float64
	defined []bool
	pos     int
	filled  int // slots written, capped at size
	valid   int // defined values currently inside the window
	sum     float64
	sumSq   float64
	pushes  int // since the last rebuild
	same    int // trailing run of defined values equal to the latest one
	last    float64
}

func newRollingWindow(size int) *rollingWindow {
	return &rollingWindow{
		size:    size,
		values:  make([]float64, size),
		defined: make([]bool, size),
	}
}

// push appends a value, evicting the oldest one once the window is full.
func (w *rollingWindow) push(v float64, ok bool) {
	if w.filled == w.size {
		if w.defined[w.pos] {
			old := w.values[w.pos]
			w.sum -= old
			w.sumSq -= old * old
			w.valid--
		}
	} else {
		w.filled++
	}

	w.values[w.pos] = v
	w.defined[w.pos] = ok
	if ok {
		w.sum += v
		w.sumSq += v * v
		w.valid++
	}
	if w.valid == 0 {
		w.sum, w.sumSq = 0, 0
	}

	switch {
	case !ok:
		w.same = 0
	case w.same > 0 && v == w.last:
		w.same++
	default:
		w.same = 1
	}
	w.last = v

	w.pos = (w.pos + 1) % w.size
	w.pushes++
	if w.pushes >= w.size {
		w.rebuild()
	}
}

func (w *rollingWindow) rebuild() {
	w.sum, w.sumSq = 0, 0
	for i := 0; i < w.filled; i++ {
		if w.defined[i] {
			w.sum += w.values[i]
			w.sumSq += w.values[i] * w.values[i]
		}
	}
	w.pushes = 0
}

// ready reports whether the window holds size defined values.
func (w *rollingWindow) ready() bool {
	return w.filled == w.size && w.valid == w.size
}

func (w *rollingWindow) mean() (float64, bool) {
	if !w.ready() {
		return 0, false
	}
	return w.sum / float64(w.size), true
}

// stddev returns the sample standard deviation of the window.
func (w *rollingWindow) stddev() (float64, bool) {
	if !w.ready() || w.size < 2 {
		return 0, false
	}
	if w.same >= w.size {
		return 0, true
	}
	n := float64(w.size)
	variance := (w.sumSq - w.sum*w.sum/n) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance), true
}
