// Package hygrometer classifies and decodes the service data broadcast by BLE
// temperature/humidity sensors (Xiaomi Mijia, BTHome v2 and the PVVX custom firmware).
package hygrometer

import (
	"strconv"

	"github.com/robertof/go-hygrometer-scanner/device"
)

// Format is the packet format of an advertisement. The set is closed: adding a format means
// adding a constant here, a service ID to classifyOrder and a case to Decode.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatMijia
	FormatBTHome
	FormatPVVX
)

var (
	MijiaServiceID  = device.ServiceID16(0xfe95)
	BTHomeServiceID = device.ServiceID16(0xfcd2)
	PVVXServiceID   = device.ServiceID16(0x181a)
)

// in priority order, first match wins.
var classifyOrder = []struct {
	id     device.ServiceID
	format Format
}{
	{MijiaServiceID, FormatMijia},
	{BTHomeServiceID, FormatBTHome},
	{PVVXServiceID, FormatPVVX},
}

// Formats lists the recognized formats, in classification priority order.
func Formats() []Format {
	out := make([]Format, 0, len(classifyOrder)+1)

	for _, entry := range classifyOrder {
		out = append(out, entry.format)
	}

	return append(out, FormatUnknown)
}

func (f Format) String() string {
	switch f {
	case FormatUnknown:
		return "Unknown"
	case FormatMijia:
		return "MijiaV3"
	case FormatBTHome:
		return "BTHomeV2"
	case FormatPVVX:
		return "PVVX"
	default:
		panic("unknown format: " + strconv.Itoa(int(f)))
	}
}

// Classify returns the format and payload of the highest priority recognized service data
// section, or (FormatUnknown, nil).
func Classify(serviceData map[device.ServiceID][]byte) (Format, []byte) {
	for _, entry := range classifyOrder {
		if data, ok := serviceData[entry.id]; ok {
			return entry.format, data
		}
	}

	return FormatUnknown, nil
}
