package hygrometer_test

import (
	"bytes"
	"testing"

	"github.com/robertof/go-hygrometer-scanner/device"
	"github.com/robertof/go-hygrometer-scanner/device/hygrometer"
)

func TestClassify(t *testing.T) {
	mijia := []byte{0x01}
	bthome := []byte{0x02}
	pvvx := []byte{0x03}

	tests := []struct {
		name        string
		serviceData map[device.ServiceID][]byte
		want        hygrometer.Format
		wantPayload []byte
	}{
		{"nil", nil, hygrometer.FormatUnknown, nil},
		{
			"unrelated service",
			map[device.ServiceID][]byte{device.ServiceID16(0xfe9f): {0xaa}},
			hygrometer.FormatUnknown,
			nil,
		},
		{
			"pvvx",
			map[device.ServiceID][]byte{hygrometer.PVVXServiceID: pvvx},
			hygrometer.FormatPVVX,
			pvvx,
		},
		{
			"bthome over pvvx",
			map[device.ServiceID][]byte{hygrometer.PVVXServiceID: pvvx, hygrometer.BTHomeServiceID: bthome},
			hygrometer.FormatBTHome,
			bthome,
		},
		{
			"mijia over everything",
			map[device.ServiceID][]byte{
				hygrometer.PVVXServiceID:   pvvx,
				hygrometer.BTHomeServiceID: bthome,
				hygrometer.MijiaServiceID:  mijia,
			},
			hygrometer.FormatMijia,
			mijia,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, payload := hygrometer.Classify(tt.serviceData)

			if got != tt.want || !bytes.Equal(payload, tt.wantPayload) {
				t.Fatalf("Classify(%v): got (%v, %x), wanted (%v, %x)",
					tt.serviceData, got, payload, tt.want, tt.wantPayload)
			}
		})
	}
}

func TestServiceIDs(t *testing.T) {
	if hygrometer.MijiaServiceID != "fe95" || hygrometer.BTHomeServiceID != "fcd2" ||
		hygrometer.PVVXServiceID != "181a" {
		t.Fatalf("unexpected service ids: %v %v %v",
			hygrometer.MijiaServiceID, hygrometer.BTHomeServiceID, hygrometer.PVVXServiceID)
	}
}
