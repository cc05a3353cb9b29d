package device

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// DeviceSpec is a `key=value,key=value` sensor description passed on the command line.
type DeviceSpec map[string]string

const (
	DeviceSpecFieldName    = "name"
	DeviceSpecFieldAddress = "addr"
)

func NewDeviceSpec(s string) DeviceSpec {
	spec := DeviceSpec{}

	for _, entry := range strings.Split(s, ",") {
		parts := strings.SplitN(entry, "=", 2)

		if len(parts) != 2 {
			log.Warn().Str("Entry", entry).Msg("Skipping invalid device spec entry")
			continue
		}

		spec[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}

	return spec
}

func (ds DeviceSpec) Name() string {
	return ds[DeviceSpecFieldName]
}

func (ds DeviceSpec) Addr() string {
	return ds[DeviceSpecFieldAddress]
}

// Sensor is a known sensor, used to label readings and to build the scan allow-list.
type Sensor struct {
	Name string
	Addr Address
}

func SensorFromSpec(spec DeviceSpec) (Sensor, error) {
	addr, err := ParseAddress(spec.Addr())
	if err != nil {
		return Sensor{}, err
	}

	s := Sensor{Addr: addr}

	if name := spec.Name(); name != "" {
		s.Name = name
	} else {
		s.Name = "sensor-" + strings.ReplaceAll(string(addr), ":", "")
	}

	return s, nil
}

func (s Sensor) String() string {
	return fmt.Sprintf("sensor[name=%q, addr=%v]", s.Name, s.Addr)
}
