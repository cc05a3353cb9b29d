package ble

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/go-ble/ble/linux"
	"github.com/go-ble/ble/linux/hci/cmd"
	"github.com/robertof/go-hygrometer-scanner/device"
	"github.com/robertof/go-hygrometer-scanner/utils"
	"github.com/rs/zerolog/log"
)

const DefaultDeviceTTL = 30 * time.Second

var (
	ErrClosed        = errors.New("bluetooth handle closed")
	ErrSessionActive = errors.New("a discovery session is already active")
	ErrNotSupported  = errors.New("not supported by this backend")
)

// scanner is a radio backend able to run one scan at a time.
type scanner interface {
	// prepare is called before every discovery session, e.g. to power the adapter on.
	prepare() error
	// scan blocks until ctx is done or the backend stops scanning on its own.
	scan(ctx context.Context, onAdvertisement func(device.Advertisement)) error
	close()
}

type Handle struct {
	// Devices not advertising for longer than DeviceTTL are reported as removed.
	// Zero disables expiry.
	DeviceTTL time.Duration

	scanner     scanner
	cache       *deviceCache
	stopTimeout time.Duration

	// set for the HCI backend only.
	hci *linux.Device

	mu     sync.Mutex
	active *Session
	closed bool
}

func newHandle(s scanner) *Handle {
	return &Handle{
		DeviceTTL:   DefaultDeviceTTL,
		scanner:     s,
		cache:       newDeviceCache(),
		stopTimeout: defaultScanStopTimeout,
	}
}

// Discover starts a new discovery session. Only one session can be active at a time: the
// previous one must be stopped and drained first.
func (h *Handle) Discover(ctx context.Context) (*Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}

	if h.active != nil && !h.active.finished() {
		return nil, ErrSessionActive
	}

	if err := h.scanner.prepare(); err != nil {
		return nil, fmt.Errorf("failed to start discovery: %w", err)
	}

	h.active = startSession(ctx, h.scanner, h.cache, h.DeviceTTL, h.stopTimeout)

	return h.active, nil
}

// Device returns the latest known advertisement data for addr.
func (h *Handle) Device(addr device.Address) (device.Advertisement, error) {
	if a, ok := h.cache.get(addr); ok {
		return a, nil
	}

	return device.Advertisement{}, fmt.Errorf("%w: %v", device.ErrUnknownDevice, addr)
}

func (h *Handle) SetAllowListedAddresses(addrs []net.HardwareAddr) error {
	if h.hci == nil {
		return fmt.Errorf("device allow-list: %w", ErrNotSupported)
	}

	log.Debug().
		Array("DeviceAddresses", utils.ToZeroLogArray(addrs)).
		Msg("Allow-listing the requested Bluetooth devices")

	// clear the white list to make sure we're starting from an empty slate.
	var res cmd.LEClearWhiteListRP

	if err := h.hci.HCI.Send(&cmd.LEClearWhiteList{}, &res); err != nil {
		return fmt.Errorf("failed to clear allow-list: %w", err)
	}

	if res.Status != 0 {
		return fmt.Errorf("failed to clear allow-list: got status: %v", res.Status)
	}

	for _, addr := range addrs {
		if len(addr) != 6 {
			return fmt.Errorf("failed to allow-list device %q: not a 6 byte MAC address", addr)
		}

		var res cmd.LEAddDeviceToWhiteListRP
		var wire [6]byte

		// HCI wants the address in little endian order.
		copy(wire[:], utils.Reverse(addr))

		err := h.hci.HCI.Send(&cmd.LEAddDeviceToWhiteList{
			AddressType: 0x00, // public
			Address:     wire,
		}, &res)

		if err != nil {
			return fmt.Errorf("failed to allow-list device %q: %w", addr.String(), err)
		}

		if res.Status != 0 {
			return fmt.Errorf("failed to allow-list device %q: got status: %v", addr.String(), res.Status)
		}
	}

	return nil
}

// Stop ends the active session (if any) and releases the adapter.
func (h *Handle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.closed = true

	if h.active != nil {
		h.active.Stop()
	}

	h.scanner.close()
}
