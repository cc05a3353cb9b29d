package device_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/robertof/go-hygrometer-scanner/device"
)

func TestParseAddress(t *testing.T) {
	got, err := device.ParseAddress("A4:C1:38:A0:7B:03")

	if err != nil || got != "a4:c1:38:a0:7b:03" {
		t.Fatalf("ParseAddress(): got (%q, %v), wanted (%q, nil)", got, err, "a4:c1:38:a0:7b:03")
	}

	for _, in := range []string{"", "a4:c1:38", "00:00:00:00:fe:80:00:00:00:00:00:00:02:00:5e:10:00:00:00:01"} {
		if _, err := device.ParseAddress(in); err == nil {
			t.Fatalf("ParseAddress(%q): expected an error", in)
		}
	}
}

func TestAdvertisement_Merge(t *testing.T) {
	first := time.Unix(1000, 0)
	a := device.Advertisement{
		Addr:        "a4:c1:38:a0:7b:03",
		Name:        "ATC_A07B03",
		RSSI:        -70,
		ServiceData: map[device.ServiceID][]byte{"181a": {0x01}},
		SeenAt:      first,
	}

	a.Merge(device.Advertisement{
		Addr:             "a4:c1:38:a0:7b:03",
		RSSI:             -60,
		ServiceData:      map[device.ServiceID][]byte{"fcd2": {0x40}},
		ManufacturerData: map[uint16][]byte{0x0001: {0xaa}},
		SeenAt:           first.Add(time.Second),
	})

	want := device.Advertisement{
		Addr:             "a4:c1:38:a0:7b:03",
		Name:             "ATC_A07B03",
		RSSI:             -60,
		ServiceData:      map[device.ServiceID][]byte{"181a": {0x01}, "fcd2": {0x40}},
		ManufacturerData: map[uint16][]byte{0x0001: {0xaa}},
		SeenAt:           first.Add(time.Second),
	}

	if !reflect.DeepEqual(a, want) {
		t.Fatalf("got %+#v, wanted %+#v", a, want)
	}
}

func TestAdvertisement_Clone(t *testing.T) {
	a := device.Advertisement{
		ServiceData: map[device.ServiceID][]byte{"181a": {0x01}},
	}

	c := a.Clone()
	c.ServiceData["181a"][0] = 0xff
	c.ServiceData["fe95"] = nil

	if a.ServiceData["181a"][0] != 0x01 || len(a.ServiceData) != 1 {
		t.Fatalf("modifying a clone changed the original: %+#v", a)
	}
}

func TestSensorFromSpec(t *testing.T) {
	got, err := device.SensorFromSpec(device.NewDeviceSpec("name = bedroom, addr=A4:C1:38:00:00:01"))
	want := device.Sensor{Name: "bedroom", Addr: "a4:c1:38:00:00:01"}

	if err != nil || !reflect.DeepEqual(got, want) {
		t.Fatalf("SensorFromSpec(): got (%+#v, %v), wanted (%+#v, nil)", got, err, want)
	}

	if _, err := device.SensorFromSpec(device.NewDeviceSpec("name=bedroom")); err == nil {
		t.Fatalf("SensorFromSpec(): expected an error for a spec without address")
	}
}

func TestReading_String(t *testing.T) {
	r := device.Reading{
		Temperature:     22.9,
		Humidity:        64.25,
		BatteryLevel:    16,
		HasTemperature:  true,
		HasHumidity:     true,
		HasBatteryLevel: true,
	}

	if got, want := r.String(), "Reading[Temperature=22.90C,Humidity=64.25%,Battery=16%]"; got != want {
		t.Fatalf("got %q, wanted %q", got, want)
	}

	if r.Empty() || !(device.Reading{}).Empty() {
		t.Fatalf("Empty() returned the wrong result")
	}
}

func TestEvent_String(t *testing.T) {
	ev := device.Event{Type: device.DeviceRemoved, Addr: "a4:c1:38:00:00:01"}

	if got, want := ev.String(), "DeviceRemoved(a4:c1:38:00:00:01)"; got != want {
		t.Fatalf("got %q, wanted %q", got, want)
	}
}
