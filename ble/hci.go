package ble

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/go-ble/ble/linux/hci/cmd"
	"github.com/robertof/go-hygrometer-scanner/device"
	"github.com/rs/zerolog/log"
)

type Flags int

const (
	// Run active scans rather than passive scans (requesting scan responses, which usually
	// carry the device name).
	FlagScanTypeActive Flags = 1 << iota
	// Only report allow-listed devices. Configured with `SetAllowListedAddresses()`.
	FlagEnableDeviceAllowList
)

func (f Flags) String() string {
	var flags []string

	if f&FlagScanTypeActive == FlagScanTypeActive {
		flags = append(flags, "active scan")
	}

	if f&FlagEnableDeviceAllowList == FlagEnableDeviceAllowList {
		flags = append(flags, "device allow-list")
	}

	if len(flags) == 0 {
		return "none"
	}

	return strings.Join(flags, ", ")
}

type scanType uint8

const (
	scanTypePassive scanType = iota
	scanTypeActive
)

func (s scanType) String() string {
	switch s {
	case scanTypeActive:
		return "Active"
	case scanTypePassive:
		return "Passive"
	default:
		panic("unknown scanType value: " + strconv.Itoa(int(s)))
	}
}

type filterPolicy uint8

const (
	filterPolicyAcceptAll filterPolicy = iota
	filterPolicyAllowListedOnly
)

func (f filterPolicy) String() string {
	switch f {
	case filterPolicyAcceptAll:
		return "Accept All"
	case filterPolicyAllowListedOnly:
		return "Allow-listed Only"
	default:
		panic("unknown filterPolicy value: " + strconv.Itoa(int(f)))
	}
}

// hciScanner talks to the controller directly over a raw HCI socket.
type hciScanner struct {
	dev *linux.Device
}

// Init opens HCI device `hciN` and returns a handle scanning through it.
func Init(deviceId int, flags Flags) (*Handle, error) {
	var scanType scanType = scanTypePassive
	var filterPolicy filterPolicy = filterPolicyAcceptAll

	if flags&FlagScanTypeActive == FlagScanTypeActive {
		scanType = scanTypeActive
	}

	if flags&FlagEnableDeviceAllowList == FlagEnableDeviceAllowList {
		filterPolicy = filterPolicyAllowListedOnly
	}

	log.Debug().
		Stringer("ScanType", scanType).
		Stringer("FilterPolicy", filterPolicy).
		Stringer("Flags", flags).
		Int("DeviceID", deviceId).
		Msg("Initializing Bluetooth device")

	dev, err := linux.NewDevice(
		ble.OptDeviceID(deviceId),
		ble.OptScanParams(cmd.LESetScanParameters{
			LEScanType:           uint8(scanType),     // 0x00: passive, 0x01: active
			LEScanInterval:       0x0010,              // 0x0004 - 0x4000; N * 0.625msec
			LEScanWindow:         0x0010,              // 0x0004 - 0x4000; N * 0.625msec
			OwnAddressType:       0x00,                // 0x00: public, 0x01: random
			ScanningFilterPolicy: uint8(filterPolicy), // 0x00: accept all, 0x01: ignore non-allow-listed.
		}),
	)

	if err != nil {
		return nil, fmt.Errorf("failed to init bluetooth device: %w", err)
	}

	h := newHandle(&hciScanner{dev: dev})
	h.hci = dev

	return h, nil
}

func (s *hciScanner) prepare() error {
	return nil
}

func (s *hciScanner) scan(ctx context.Context, onAdvertisement func(device.Advertisement)) error {
	// duplicates are needed: sensors rotate their payload between advertisements.
	return s.dev.Scan(ctx, true, func(a ble.Advertisement) {
		onAdvertisement(fromHCIAdvertisement(a, time.Now()))
	})
}

func (s *hciScanner) close() {
	if err := s.dev.Stop(); err != nil {
		log.Warn().Err(err).Msg("ble: failed to stop HCI device")
	}
}

func fromHCIAdvertisement(a ble.Advertisement, seenAt time.Time) device.Advertisement {
	out := device.Advertisement{
		Addr:   device.NormalizeAddress(a.Addr().String()),
		Name:   a.LocalName(),
		RSSI:   a.RSSI(),
		SeenAt: seenAt,
	}

	if sd := a.ServiceData(); len(sd) > 0 {
		out.ServiceData = make(map[device.ServiceID][]byte, len(sd))

		for _, entry := range sd {
			out.ServiceData[hciServiceID(entry.UUID)] = append([]byte(nil), entry.Data...)
		}
	}

	// the first two bytes are the company identifier.
	if md := a.ManufacturerData(); len(md) >= 2 {
		out.ManufacturerData = map[uint16][]byte{
			binary.LittleEndian.Uint16(md): append([]byte(nil), md[2:]...),
		}
	}

	return out
}

func hciServiceID(u ble.UUID) device.ServiceID {
	// go-ble stores UUIDs in wire (little endian) order.
	if len(u) == 2 {
		return device.ServiceID16(binary.LittleEndian.Uint16(u))
	}

	return device.ServiceID(strings.ToLower(u.String()))
}
