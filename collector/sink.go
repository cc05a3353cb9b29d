package collector

import (
	"fmt"

	"github.com/robertof/go-hygrometer-scanner/collector/model"
	"github.com/robertof/go-hygrometer-scanner/device"
	"github.com/robertof/go-hygrometer-scanner/device/hygrometer"
	"github.com/robertof/go-hygrometer-scanner/utils"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogSink writes one log entry per result.
type LogSink struct {
	// Names overrides the advertised name of known sensors.
	Names map[device.Address]string

	logger *zerolog.Logger
}

// NewLogSink logs through the global logger unless another one is given.
func NewLogSink(names map[device.Address]string, logger *zerolog.Logger) *LogSink {
	if logger == nil {
		logger = &log.Logger
	}

	return &LogSink{
		Names:  names,
		logger: logger,
	}
}

func (s *LogSink) name(a device.Advertisement) string {
	if name, ok := s.Names[a.Addr]; ok {
		return name
	}

	if a.Name != "" {
		return a.Name
	}

	return "<unknown>"
}

func (s *LogSink) Report(res model.DeviceResult) {
	a := res.Advertisement

	switch {
	case res.Format == hygrometer.FormatUnknown:
		s.logger.Info().
			Stringer("Addr", a.Addr).
			Str("Name", s.name(a)).
			Int("RSSI", a.RSSI).
			Strs("Services", utils.Strings(utils.SortedKeys(a.ServiceData))).
			Dict("ManufacturerData", manufacturerDataDict(a.ManufacturerData)).
			Msg("Unclassified advertisement")

	case res.Error != nil:
		s.logger.Warn().
			Err(res.Error).
			Stringer("Addr", a.Addr).
			Str("Name", s.name(a)).
			Stringer("Format", res.Format).
			Int("Length", len(res.Payload)).
			Hex("Payload", res.Payload).
			Msg("Failed to decode advertisement")

	default:
		r := res.Reading

		e := s.logger.Info().
			Stringer("Addr", a.Addr).
			Str("Name", s.name(a)).
			Int("RSSI", a.RSSI).
			Stringer("Format", res.Format)

		if r.HasTemperature {
			e = e.Float32("Temperature", r.Temperature)
		}

		if r.HasHumidity {
			e = e.Float32("Humidity", r.Humidity)
		}

		if r.HasVoltage {
			e = e.Float32("Voltage", r.Voltage)
		}

		if r.HasBatteryLevel {
			e = e.Uint8("Battery", r.BatteryLevel)
		}

		if r.Empty() {
			e.Msg("Decoded advertisement without sensor values")
		} else {
			e.Msg("Got sensor reading")
		}
	}
}

func manufacturerDataDict(md map[uint16][]byte) *zerolog.Event {
	dict := zerolog.Dict()

	for _, id := range utils.SortedKeys(md) {
		dict = dict.Hex(fmt.Sprintf("0x%04X", id), md[id])
	}

	return dict
}
