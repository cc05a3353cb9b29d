package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robertof/go-hygrometer-scanner/device"
	"github.com/rs/zerolog/log"
	"tinygo.org/x/bluetooth"
)

const stopScanRetryInterval = 100 * time.Millisecond

// bluezScanner scans through the BlueZ daemon over D-Bus, leaving the adapter shared with the
// rest of the system.
type bluezScanner struct {
	name    string
	adapter *bluetooth.Adapter

	mu      sync.Mutex
	enabled bool
}

// InitBlueZ returns a handle scanning through the BlueZ adapter `name` (e.g. "hci0").
func InitBlueZ(name string) (*Handle, error) {
	if name == "" {
		name = "hci0"
	}

	log.Debug().Str("Adapter", name).Msg("Initializing BlueZ adapter")

	s := &bluezScanner{
		name:    name,
		adapter: bluetooth.NewAdapter(name),
	}

	// fail early on a missing adapter or daemon; later failures are retried per session.
	if err := s.prepare(); err != nil {
		return nil, err
	}

	return newHandle(s), nil
}

func (s *bluezScanner) prepare() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enabled {
		return nil
	}

	if err := s.adapter.Enable(); err != nil {
		return fmt.Errorf("failed to enable bluez adapter %s: %w", s.name, err)
	}

	s.enabled = true

	return nil
}

func (s *bluezScanner) scan(ctx context.Context, onAdvertisement func(device.Advertisement)) error {
	finished := make(chan struct{})
	defer close(finished)

	// adapter.Scan blocks until StopScan() or error. StopScan fails while Scan is still
	// setting up, so it is retried until Scan returns.
	go func() {
		select {
		case <-ctx.Done():
		case <-finished:
			return
		}

		retry := time.NewTicker(stopScanRetryInterval)
		defer retry.Stop()

		for {
			if err := s.adapter.StopScan(); err != nil {
				log.Trace().Err(err).Msg("ble: StopScan failed, retrying")
			}

			select {
			case <-finished:
				return
			case <-retry.C:
			}
		}
	}()

	err := s.adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
		onAdvertisement(fromBlueZScanResult(r, time.Now()))
	})

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err != nil {
		// the adapter might have been powered off underneath us.
		s.mu.Lock()
		s.enabled = false
		s.mu.Unlock()

		return fmt.Errorf("bluez scan: %w", err)
	}

	return nil
}

func (s *bluezScanner) close() {
	_ = s.adapter.StopScan()
}

func fromBlueZScanResult(r bluetooth.ScanResult, seenAt time.Time) device.Advertisement {
	out := device.Advertisement{
		Addr:   device.NormalizeAddress(r.Address.String()),
		Name:   r.LocalName(),
		RSSI:   int(r.RSSI),
		SeenAt: seenAt,
	}

	if sd := r.ServiceData(); len(sd) > 0 {
		out.ServiceData = make(map[device.ServiceID][]byte, len(sd))

		for _, entry := range sd {
			out.ServiceData[bluezServiceID(entry.UUID)] = append([]byte(nil), entry.Data...)
		}
	}

	if md := r.ManufacturerData(); len(md) > 0 {
		out.ManufacturerData = make(map[uint16][]byte, len(md))

		for _, entry := range md {
			out.ManufacturerData[entry.CompanyID] = append([]byte(nil), entry.Data...)
		}
	}

	return out
}

func bluezServiceID(u bluetooth.UUID) device.ServiceID {
	if u.Is16Bit() {
		return device.ServiceID16(u.Get16Bit())
	}

	return device.ServiceID(strings.ToLower(u.String()))
}
