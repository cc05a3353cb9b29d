package supervisor

import (
	"sync"
	"time"
)

// Watchdog tracks when a reading was last decoded.
type Watchdog struct {
	mu         sync.Mutex
	lastDecode time.Time
	now        func() time.Time
}

func NewWatchdog(now func() time.Time) *Watchdog {
	if now == nil {
		now = time.Now
	}

	return &Watchdog{
		lastDecode: now(),
		now:        now,
	}
}

// RecordDecode marks the current instant as the last successful decode.
func (w *Watchdog) RecordDecode() {
	t := w.now()

	w.mu.Lock()
	w.lastDecode = t
	w.mu.Unlock()
}

func (w *Watchdog) LastDecode() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.lastDecode
}

// Since returns the time elapsed since the last decode, or since notBefore if that is more
// recent.
func (w *Watchdog) Since(notBefore time.Time) time.Duration {
	ref := w.LastDecode()

	if notBefore.After(ref) {
		ref = notBefore
	}

	return w.now().Sub(ref)
}
