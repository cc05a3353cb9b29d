package hygrometer

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/robertof/go-hygrometer-scanner/device"
)

var (
	ErrUnclassified      = errors.New("unclassified advertisement")
	ErrUnknownObjectType = errors.New("unknown object type")
)

// BTHome v2 frames start with the AD length/type and the 0xfcd2 UUID; the service data handed
// out by the radio stack has them stripped.
var bthomePreamble = [...]byte{0x16, 0xd2, 0xfc, 0x40}

const (
	mijiaTypeOffset  = 11
	mijiaValueOffset = 14

	mijiaTypeTemperatureHumidity = 0x0d
	mijiaTypeTemperature         = 0x04
	mijiaTypeHumidity            = 0x06
	mijiaTypeBattery             = 0x0a

	pvvxMinLength = 15
	pvvxMACLength = 6

	bthomeTagBattery     = 0x01
	bthomeTagTemperature = 0x02
	bthomeTagHumidity    = 0x03
	bthomeTagVoltage     = 0x0c
)

// Decode dispatches payload to the decoder of format f.
func Decode(f Format, payload []byte) (device.Reading, error) {
	switch f {
	case FormatMijia:
		return DecodeMijia(payload)
	case FormatBTHome:
		return DecodeBTHome(payload), nil
	case FormatPVVX:
		return DecodePVVX(payload)
	case FormatUnknown:
		return device.Reading{}, ErrUnclassified
	default:
		panic("unhandled format: " + f.String())
	}
}

// DecodeMijia decodes the legacy MiBeacon object carried by LYWSDCGQ hygrometers. The object
// type lives at offset 11, its value from offset 14.
func DecodeMijia(data []byte) (reading device.Reading, err error) {
	if len(data) <= mijiaTypeOffset {
		return reading, errors.Wrapf(device.ErrInvalidData,
			"mijia: payload too short (length %d, want > %d)", len(data), mijiaTypeOffset)
	}

	bo := binary.LittleEndian
	objType := data[mijiaTypeOffset]

	var minLength int

	switch objType {
	case mijiaTypeTemperatureHumidity:
		minLength = 18
	case mijiaTypeTemperature, mijiaTypeHumidity:
		minLength = 16
	case mijiaTypeBattery:
		minLength = 15
	default:
		return reading, errors.Wrapf(ErrUnknownObjectType,
			"mijia: type 0x%02x, length %d", objType, len(data))
	}

	if len(data) < minLength {
		return reading, errors.Wrapf(device.ErrInvalidData,
			"mijia: type 0x%02x, length %d (want >= %d)", objType, len(data), minLength)
	}

	value := data[mijiaValueOffset:]

	switch objType {
	case mijiaTypeTemperatureHumidity:
		reading.Temperature = float32(int16(bo.Uint16(value))) / 10
		reading.Humidity = float32(bo.Uint16(value[2:])) / 10
		reading.HasTemperature = true
		reading.HasHumidity = true
	case mijiaTypeTemperature:
		reading.Temperature = float32(int16(bo.Uint16(value))) / 10
		reading.HasTemperature = true
	case mijiaTypeHumidity:
		// single-value objects start right at the value offset.
		reading.Humidity = float32(bo.Uint16(value)) / 10
		reading.HasHumidity = true
	case mijiaTypeBattery:
		reading.BatteryLevel = value[0]
		reading.HasBatteryLevel = true
	}

	return reading, nil
}

// DecodeBTHome decodes an unencrypted BTHome v2 object stream. It never fails: it returns
// whatever objects it recognized before running out of data.
//
// Object ids other than battery, temperature, humidity and voltage are assumed to carry a
// single byte. Objects wider than that misalign the rest of the stream.
func DecodeBTHome(payload []byte) (reading device.Reading) {
	frame := make([]byte, 0, len(bthomePreamble)+len(payload))
	frame = append(frame, bthomePreamble[:]...)
	frame = append(frame, payload...)

	data := frame[len(bthomePreamble):]
	bo := binary.LittleEndian

	// data[0] is the device information byte.
	for i := 1; i+1 < len(data); {
		switch data[i] {
		case bthomeTagBattery:
			reading.BatteryLevel = data[i+1]
			reading.HasBatteryLevel = true
			i += 2
		case bthomeTagTemperature:
			if i+2 >= len(data) {
				return reading
			}

			reading.Temperature = float32(int16(bo.Uint16(data[i+1:]))) / 100
			reading.HasTemperature = true
			i += 3
		case bthomeTagHumidity:
			if i+2 >= len(data) {
				return reading
			}

			reading.Humidity = float32(bo.Uint16(data[i+1:])) / 100
			reading.HasHumidity = true
			i += 3
		case bthomeTagVoltage:
			if i+2 >= len(data) {
				return reading
			}

			reading.Voltage = float32(bo.Uint16(data[i+1:])) / 1000
			reading.HasVoltage = true
			i += 3
		default:
			i += 2
		}
	}

	return reading
}

// DecodePVVX decodes the custom format of the pvvx ATC_MiThermometer firmware:
// 6 byte MAC, int16 temperature (0.01°C), uint16 humidity (0.01%), uint16 battery mV,
// uint8 battery %, uint16 counter.
func DecodePVVX(data []byte) (reading device.Reading, err error) {
	if len(data) < pvvxMinLength {
		return reading, errors.Wrapf(device.ErrInvalidData,
			"pvvx: payload too short (length %d, want >= %d)", len(data), pvvxMinLength)
	}

	bo := binary.LittleEndian
	values := data[pvvxMACLength:]

	reading.Temperature = float32(int16(bo.Uint16(values))) / 100
	reading.Humidity = float32(bo.Uint16(values[2:])) / 100
	reading.Voltage = float32(bo.Uint16(values[4:])) / 1000
	reading.BatteryLevel = values[6]

	reading.HasTemperature = true
	reading.HasHumidity = true
	reading.HasVoltage = true
	reading.HasBatteryLevel = true

	return reading, nil
}
