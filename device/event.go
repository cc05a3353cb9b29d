package device

import (
	"fmt"
	"strconv"
)

type EventType uint8

const (
	DeviceAdded EventType = iota
	DeviceRemoved
)

func (t EventType) String() string {
	switch t {
	case DeviceAdded:
		return "DeviceAdded"
	case DeviceRemoved:
		return "DeviceRemoved"
	default:
		panic("unknown event type: " + strconv.Itoa(int(t)))
	}
}

// Event is a discovery notification for a single device address.
type Event struct {
	Type EventType
	Addr Address
}

func (e Event) String() string {
	return fmt.Sprintf("%v(%v)", e.Type, e.Addr)
}
