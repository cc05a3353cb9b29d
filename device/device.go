package device

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

var (
	ErrInvalidData   = errors.New("invalid data")
	ErrUnknownDevice = errors.New("unknown device")
)

// Address is a normalized (lower-case, colon separated) Bluetooth device address.
type Address string

func NormalizeAddress(s string) Address {
	return Address(strings.ToLower(strings.TrimSpace(s)))
}

func ParseAddress(s string) (Address, error) {
	hwAddr, err := net.ParseMAC(s)
	if err != nil {
		return "", fmt.Errorf("invalid addr: %w", err)
	}

	if len(hwAddr) != 6 {
		return "", fmt.Errorf("invalid addr %q: want a 6 byte MAC address", s)
	}

	return NormalizeAddress(hwAddr.String()), nil
}

func (a Address) HardwareAddr() net.HardwareAddr {
	hwAddr, err := net.ParseMAC(string(a))
	if err != nil {
		return nil
	}

	return hwAddr
}

func (a Address) String() string {
	return string(a)
}

// ServiceID identifies a service data section. 16-bit UUIDs are rendered as 4 lower-case hex
// digits (e.g. "fe95"), anything else as the full UUID string.
type ServiceID string

func ServiceID16(v uint16) ServiceID {
	return ServiceID(fmt.Sprintf("%04x", v))
}

func (s ServiceID) String() string {
	return string(s)
}

// Advertisement is a snapshot of everything the radio knows about a device.
type Advertisement struct {
	Addr             Address
	Name             string
	RSSI             int
	ServiceData      map[ServiceID][]byte
	ManufacturerData map[uint16][]byte
	SeenAt           time.Time
}

// Merge folds a newer advertisement into a. Fields missing from the newer packet (scan
// responses usually carry only a subset) are kept from a.
func (a *Advertisement) Merge(newer Advertisement) {
	if newer.Name != "" {
		a.Name = newer.Name
	}

	a.RSSI = newer.RSSI
	a.SeenAt = newer.SeenAt

	if len(newer.ServiceData) > 0 && a.ServiceData == nil {
		a.ServiceData = make(map[ServiceID][]byte, len(newer.ServiceData))
	}

	for id, data := range newer.ServiceData {
		a.ServiceData[id] = data
	}

	if len(newer.ManufacturerData) > 0 && a.ManufacturerData == nil {
		a.ManufacturerData = make(map[uint16][]byte, len(newer.ManufacturerData))
	}

	for id, data := range newer.ManufacturerData {
		a.ManufacturerData[id] = data
	}
}

// Clone returns a deep copy, safe to hand out of a lock.
func (a Advertisement) Clone() Advertisement {
	out := a
	out.ServiceData = nil
	out.ManufacturerData = nil

	if a.ServiceData != nil {
		out.ServiceData = make(map[ServiceID][]byte, len(a.ServiceData))

		for id, data := range a.ServiceData {
			out.ServiceData[id] = append([]byte(nil), data...)
		}
	}

	if a.ManufacturerData != nil {
		out.ManufacturerData = make(map[uint16][]byte, len(a.ManufacturerData))

		for id, data := range a.ManufacturerData {
			out.ManufacturerData[id] = append([]byte(nil), data...)
		}
	}

	return out
}

func (a Advertisement) String() string {
	return fmt.Sprintf("advertisement[addr=%v, name=%q, rssi=%d]", a.Addr, a.Name, a.RSSI)
}
