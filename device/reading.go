package device

import (
	"fmt"
	"strings"
)

// Reading is a normalized sensor reading. Every value is optional and only meaningful when
// the matching Has* flag is set.
type Reading struct {
	Temperature  float32 // °C
	Humidity     float32 // %RH
	BatteryLevel uint8   // %
	Voltage      float32 // V

	HasTemperature  bool
	HasHumidity     bool
	HasBatteryLevel bool
	HasVoltage      bool
}

func (r Reading) Empty() bool {
	return !r.HasTemperature && !r.HasHumidity && !r.HasBatteryLevel && !r.HasVoltage
}

func (r Reading) String() string {
	var fields []string

	if r.HasTemperature {
		fields = append(fields, fmt.Sprintf("Temperature=%.2fC", r.Temperature))
	}

	if r.HasHumidity {
		fields = append(fields, fmt.Sprintf("Humidity=%.2f%%", r.Humidity))
	}

	if r.HasVoltage {
		fields = append(fields, fmt.Sprintf("Voltage=%.3fV", r.Voltage))
	}

	if r.HasBatteryLevel {
		fields = append(fields, fmt.Sprintf("Battery=%d%%", r.BatteryLevel))
	}

	return fmt.Sprintf("Reading[%v]", strings.Join(fields, ","))
}
