package model

import (
	"fmt"

	"github.com/robertof/go-hygrometer-scanner/device"
	"github.com/robertof/go-hygrometer-scanner/device/hygrometer"
)

type Result struct {
	Reading device.Reading
	Error   error
}

func (c Result) String() string {
	if c.Error != nil {
		return fmt.Sprintf("result:error(%v)", c.Error)
	} else {
		return fmt.Sprintf("result:success(%v)", c.Reading)
	}
}

// DeviceResult is the outcome of classifying and decoding one device snapshot. Result is
// zero for FormatUnknown since no decoding is attempted.
type DeviceResult struct {
	Advertisement device.Advertisement
	Format        hygrometer.Format
	Payload       []byte
	Result
}

// Decoded reports whether a classified payload was decoded. The reading may carry no value.
func (d DeviceResult) Decoded() bool {
	return d.Format != hygrometer.FormatUnknown && d.Error == nil
}

func (d DeviceResult) String() string {
	return fmt.Sprintf("%v: %v %v", d.Advertisement.Addr, d.Format, d.Result)
}
