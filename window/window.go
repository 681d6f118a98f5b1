// Package window implements the Windowed Min/Max Prices tracker
// (spec.md §4.6): the minimum and maximum price observed over a sliding
// time window of duration L, maintained with a pair of monotonic deques
// for amortized O(1) inserts. Structurally grounded in the teacher's
// bounded-slice windowed trackers (feeds/indicators.go's
// VolatilityTracker/MomentumTracker); the monotonic-deque algorithm
// itself has no pack precedent and is built fresh to the spec's own
// description.
package window

import (
	"time"

	"github.com/nova-trading/execengine/model"
)

type entry struct {
	ts    model.Timestamp
	price model.Price
}

// Window tracks the min and max price over the trailing duration L,
// anchored to the most recent timestamp seen. It is not safe for
// concurrent use; callers serialize access the same way the engine
// serializes everything else (spec.md §5).
type Window struct {
	length time.Duration

	minDeque []entry // non-decreasing front-to-back
	maxDeque []entry // non-increasing front-to-back

	now model.Timestamp
}

// New returns a Window covering the trailing duration length.
func New(length time.Duration) *Window {
	return &Window{length: length}
}

// Add folds one (timestamp, price) observation into the window. t must
// be UTC-tagged (model.ErrTimestampNotUTC otherwise). Entries that have
// aged out of [now-L, now] are evicted from the front of both deques
// before the new entry's min/max position is computed.
func (w *Window) Add(t time.Time, price model.Price) error {
	ts, err := model.NewTimestamp(t)
	if err != nil {
		return err
	}

	w.now = ts
	w.evictExpired()

	for len(w.minDeque) > 0 && !w.minDeque[len(w.minDeque)-1].price.LessThan(price) {
		w.minDeque = w.minDeque[:len(w.minDeque)-1]
	}
	w.minDeque = append(w.minDeque, entry{ts: ts, price: price})

	for len(w.maxDeque) > 0 && !w.maxDeque[len(w.maxDeque)-1].price.GreaterThan(price) {
		w.maxDeque = w.maxDeque[:len(w.maxDeque)-1]
	}
	w.maxDeque = append(w.maxDeque, entry{ts: ts, price: price})

	return nil
}

// evictExpired drops front entries with ts < now-L from both deques.
func (w *Window) evictExpired() {
	cutoff := w.now.Add(-w.length)
	for len(w.minDeque) > 0 && w.minDeque[0].ts.Before(cutoff) {
		w.minDeque = w.minDeque[1:]
	}
	for len(w.maxDeque) > 0 && w.maxDeque[0].ts.Before(cutoff) {
		w.maxDeque = w.maxDeque[1:]
	}
}

// MinPrice returns the minimum price in the current window and whether
// any observation is present.
func (w *Window) MinPrice() (model.Price, bool) {
	if len(w.minDeque) == 0 {
		return model.Price{}, false
	}
	return w.minDeque[0].price, true
}

// MaxPrice returns the maximum price in the current window and whether
// any observation is present.
func (w *Window) MaxPrice() (model.Price, bool) {
	if len(w.maxDeque) == 0 {
		return model.Price{}, false
	}
	return w.maxDeque[0].price, true
}

// Reset clears all observations.
func (w *Window) Reset() {
	w.minDeque = nil
	w.maxDeque = nil
	w.now = model.Timestamp{}
}
