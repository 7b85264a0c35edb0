package engine

// rollingWindow keeps the trailing sum of one window length. Until the window is
// full it behaves as a running mean over every sample seen so far.
type rollingWindow struct {
	size int
	sum  float64
	seen int
}

func newRollingWindow(size int) *rollingWindow {
	return &rollingWindow{size: size}
}

// advance must be called once per index, in order, starting at 0.
func (w *rollingWindow) advance(closes []float64, index int) float64 {
	w.sum += closes[index]
	w.seen = index + 1
	if w.seen > w.size {
		w.sum -= closes[index-w.size]
		return w.sum / float64(w.size)
	}
	return w.sum / float64(w.seen)
}

func (w *rollingWindow) reset() {
	w.sum = 0
	w.seen = 0
}

// movingAverages drives the short and long windows independently over one series.
type movingAverages struct {
	short *rollingWindow
	long  *rollingWindow
}

func newMovingAverages(shortWindow, longWindow int) *movingAverages {
	return &movingAverages{
		short: newRollingWindow(shortWindow),
		long:  newRollingWindow(longWindow),
	}
}

func (m *movingAverages) advance(closes []float64, index int) (shortMA, longMA float64) {
	return m.short.advance(closes, index), m.long.advance(closes, index)
}

func (m *movingAverages) reset() {
	m.short.reset()
	m.long.reset()
}
