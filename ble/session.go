package ble

import (
	"context"
	"errors"
	"time"

	"github.com/robertof/go-hygrometer-scanner/device"
	"github.com/robertof/go-hygrometer-scanner/utils"
	"github.com/rs/zerolog/log"
)

const (
	sessionEventBuffer   = 64
	advertisementBuffer  = 64
	minExpiryCheckPeriod = 100 * time.Millisecond
)

// defaultScanStopTimeout bounds how long a stopped session waits for its backend scan to
// return.
const defaultScanStopTimeout = 2 * time.Second

var errScanStuck = errors.New("scan did not stop")

// Session is a running discovery. It reports each device once when first seen and again when
// it goes away. When the scan ends, every device still present is reported as removed before
// the event channel is closed.
type Session struct {
	events chan device.Event
	cancel context.CancelFunc
	done   chan struct{}

	stopTimeout time.Duration
}

func startSession(
	ctx context.Context,
	sc scanner,
	cache *deviceCache,
	ttl time.Duration,
	stopTimeout time.Duration,
) *Session {
	scanCtx, cancel := context.WithCancel(ctx)

	s := &Session{
		events: make(chan device.Event, sessionEventBuffer),
		cancel: cancel,
		done:   make(chan struct{}),

		stopTimeout: stopTimeout,
	}

	go s.run(ctx, scanCtx, sc, cache, ttl)

	return s
}

// Events returns the notification stream. It is closed when the session ends.
func (s *Session) Events() <-chan device.Event {
	return s.events
}

// Stop ends the scan. Remaining notifications can still be read from Events() until it is
// closed.
func (s *Session) Stop() {
	s.cancel()
}

func (s *Session) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) emit(ctx context.Context, t device.EventType, addr device.Address) bool {
	select {
	case s.events <- device.Event{Type: t, Addr: addr}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Session) run(
	ctx context.Context,
	scanCtx context.Context,
	sc scanner,
	cache *deviceCache,
	ttl time.Duration,
) {
	defer close(s.events)
	defer close(s.done)
	defer s.cancel()

	advertisements := make(chan device.Advertisement, advertisementBuffer)
	scanResult := make(chan error, 1)

	go func() {
		scanResult <- sc.scan(scanCtx, func(a device.Advertisement) {
			select {
			case advertisements <- a:
			case <-scanCtx.Done():
			}
		})
	}()

	log.Debug().Dur("DeviceTTLSec", ttl).Msg("ble: discovery session started")

	var expiry <-chan time.Time

	if ttl > 0 {
		ticker := time.NewTicker(max(ttl/2, minExpiryCheckPeriod))
		defer ticker.Stop()
		expiry = ticker.C
	}

	present := make(map[device.Address]time.Time)

	for {
		select {
		case a := <-advertisements:
			cache.store(a)

			if _, ok := present[a.Addr]; !ok {
				log.Trace().Stringer("Addr", a.Addr).Msg("ble: device added")

				if !s.emit(ctx, device.DeviceAdded, a.Addr) {
					return
				}
			}

			present[a.Addr] = a.SeenAt

		case now := <-expiry:
			for _, addr := range utils.SortedKeys(present) {
				if now.Sub(present[addr]) <= ttl {
					continue
				}

				delete(present, addr)
				log.Trace().Stringer("Addr", addr).Msg("ble: device expired")

				if !s.emit(ctx, device.DeviceRemoved, addr) {
					return
				}
			}

			if n := cache.evictSeenBefore(now.Add(-ttl)); n > 0 {
				log.Trace().Int("Evicted", n).Msg("ble: evicted stale devices from cache")
			}

		case <-scanCtx.Done():
			s.finish(ctx, present, waitForScan(scanResult, s.stopTimeout))
			return

		case err := <-scanResult:
			s.finish(ctx, present, err)
			return
		}
	}
}

// waitForScan gives a stopped backend scan some time to return.
func waitForScan(scanResult <-chan error, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case err := <-scanResult:
		return err
	case <-t.C:
		return errScanStuck
	}
}

// finish reports every device still present as removed.
func (s *Session) finish(ctx context.Context, present map[device.Address]time.Time, err error) {
	switch {
	case err == nil:
		log.Debug().Msg("ble: scan ended on its own")
	case utils.IsCanceled(err):
		log.Debug().Msg("ble: discovery session stopped")
	case errors.Is(err, errScanStuck):
		log.Warn().Dur("TimeoutSec", s.stopTimeout).Msg("ble: scan did not stop in time, abandoning it")
	default:
		log.Warn().Err(err).Msg("ble: scan terminated with error")
	}

	for _, addr := range utils.SortedKeys(present) {
		if !s.emit(ctx, device.DeviceRemoved, addr) {
			return
		}
	}
}
