package collector_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/robertof/go-hygrometer-scanner/collector"
	"github.com/robertof/go-hygrometer-scanner/collector/model"
	"github.com/robertof/go-hygrometer-scanner/device"
	"github.com/robertof/go-hygrometer-scanner/device/hygrometer"
)

var pvvxPayload = []byte{
	0x03, 0x7b, 0xa0, 0x38, 0xc1, 0xa4, 0xf2, 0x08,
	0x19, 0x19, 0x1d, 0x09, 0x10, 0x4a, 0x05,
}

type fakeSource map[device.Address]device.Advertisement

func (f fakeSource) Device(addr device.Address) (device.Advertisement, error) {
	if a, ok := f[addr]; ok {
		return a, nil
	}

	return device.Advertisement{}, fmt.Errorf("%w: %v", device.ErrUnknownDevice, addr)
}

type recordingSink struct {
	mu      sync.Mutex
	results []model.DeviceResult
}

func (s *recordingSink) Report(res model.DeviceResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = append(s.results, res)
}

func (s *recordingSink) all() []model.DeviceResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]model.DeviceResult(nil), s.results...)
}

func added(addr device.Address) device.Event {
	return device.Event{Type: device.DeviceAdded, Addr: addr}
}

func removed(addr device.Address) device.Event {
	return device.Event{Type: device.DeviceRemoved, Addr: addr}
}

func newTestRouter(source fakeSource) (*collector.Router, *recordingSink, *int) {
	sink := &recordingSink{}
	decodes := 0

	r := collector.NewRouter(source, sink)
	r.OnDecode = func() {
		decodes += 1
	}

	return r, sink, &decodes
}

func TestRouter_DecodesNewDevice(t *testing.T) {
	addr := device.Address("a4:c1:38:a0:7b:03")
	r, sink, decodes := newTestRouter(fakeSource{
		addr: {
			Addr:        addr,
			Name:        "ATC_A07B03",
			ServiceData: map[device.ServiceID][]byte{hygrometer.PVVXServiceID: pvvxPayload},
		},
	})

	r.Handle(added(addr))

	results := sink.all()

	if len(results) != 1 {
		t.Fatalf("got %d results, wanted 1: %v", len(results), results)
	}

	got := results[0]

	if got.Format != hygrometer.FormatPVVX || got.Error != nil {
		t.Fatalf("got result %v, wanted a PVVX reading", got)
	}

	if got.Reading.Temperature != 22.90 || got.Reading.BatteryLevel != 16 {
		t.Fatalf("got reading %v, wanted 22.90C / 16%%", got.Reading)
	}

	if *decodes != 1 {
		t.Fatalf("got %d decode notifications, wanted 1", *decodes)
	}
}

func TestRouter_RepeatedAddIsIgnored(t *testing.T) {
	addr := device.Address("a4:c1:38:a0:7b:03")
	r, sink, decodes := newTestRouter(fakeSource{
		addr: {
			Addr:        addr,
			ServiceData: map[device.ServiceID][]byte{hygrometer.PVVXServiceID: pvvxPayload},
		},
	})

	r.Handle(added(addr))
	r.Handle(added(addr))
	r.Handle(added(addr))

	if n := len(sink.all()); n != 1 {
		t.Fatalf("got %d results, wanted 1", n)
	}

	if *decodes != 1 {
		t.Fatalf("got %d decode notifications, wanted 1", *decodes)
	}
}

func TestRouter_ReaddAfterRemoveIsProcessed(t *testing.T) {
	addr := device.Address("a4:c1:38:a0:7b:03")
	r, sink, decodes := newTestRouter(fakeSource{
		addr: {
			Addr:        addr,
			ServiceData: map[device.ServiceID][]byte{hygrometer.PVVXServiceID: pvvxPayload},
		},
	})

	r.Handle(added(addr))
	r.Handle(removed(addr))

	if r.Seen().Contains(addr) {
		t.Fatalf("device %v still marked as seen after removal", addr)
	}

	r.Handle(added(addr))

	if n := len(sink.all()); n != 2 {
		t.Fatalf("got %d results, wanted 2", n)
	}

	if *decodes != 2 {
		t.Fatalf("got %d decode notifications, wanted 2", *decodes)
	}
}

func TestRouter_Unclassified(t *testing.T) {
	addr := device.Address("70:3e:97:00:00:01")
	r, sink, decodes := newTestRouter(fakeSource{
		addr: {
			Addr:             addr,
			ServiceData:      map[device.ServiceID][]byte{device.ServiceID16(0xfe9f): {0x00}},
			ManufacturerData: map[uint16][]byte{0x004c: {0x10, 0x05}},
		},
	})

	r.Handle(added(addr))

	results := sink.all()

	if len(results) != 1 {
		t.Fatalf("got %d results, wanted 1", len(results))
	}

	if got := results[0]; got.Format != hygrometer.FormatUnknown || got.Error != nil ||
		!got.Reading.Empty() || got.Payload != nil {
		t.Fatalf("got result %+v, wanted an untouched unclassified result", got)
	}

	if *decodes != 0 {
		t.Fatalf("got %d decode notifications, wanted 0", *decodes)
	}
}

func TestRouter_DecodeFailure(t *testing.T) {
	addr := device.Address("a4:c1:38:a0:7b:03")
	r, sink, decodes := newTestRouter(fakeSource{
		addr: {
			Addr:        addr,
			ServiceData: map[device.ServiceID][]byte{hygrometer.PVVXServiceID: pvvxPayload[:10]},
		},
	})

	r.Handle(added(addr))

	results := sink.all()

	if len(results) != 1 || !errors.Is(results[0].Error, device.ErrInvalidData) {
		t.Fatalf("got results %v, wanted a single decode failure", results)
	}

	if *decodes != 0 {
		t.Fatalf("got %d decode notifications, wanted 0", *decodes)
	}
}

func TestRouter_EmptyBTHomeReadingCountsAsDecode(t *testing.T) {
	addr := device.Address("a4:c1:38:00:00:10")
	r, sink, decodes := newTestRouter(fakeSource{
		addr: {
			Addr: addr,
			// a single unmapped object: decodes fine, yields no value.
			ServiceData: map[device.ServiceID][]byte{hygrometer.BTHomeServiceID: {0x40, 0x00, 0x01, 0x3a, 0x01}},
		},
	})

	r.Handle(added(addr))

	results := sink.all()

	if len(results) != 1 {
		t.Fatalf("got %d results, wanted 1", len(results))
	}

	if got := results[0]; got.Format != hygrometer.FormatBTHome || got.Error != nil || !got.Reading.Empty() {
		t.Fatalf("got result %+v, wanted an empty BTHome reading", got)
	}

	if *decodes != 1 {
		t.Fatalf("got %d decode notifications, wanted 1", *decodes)
	}
}

func TestRouter_FetchFailure(t *testing.T) {
	addr := device.Address("a4:c1:38:00:00:11")
	r, sink, _ := newTestRouter(fakeSource{})

	r.Handle(added(addr))

	if n := len(sink.all()); n != 0 {
		t.Fatalf("got %d results, wanted 0", n)
	}

	if !r.Seen().Contains(addr) {
		t.Fatalf("device %v not marked as seen", addr)
	}
}

func TestRouter_Run(t *testing.T) {
	a := device.Address("a4:c1:38:00:00:01")
	b := device.Address("a4:c1:38:00:00:02")

	r, sink, _ := newTestRouter(fakeSource{
		a: {Addr: a, ServiceData: map[device.ServiceID][]byte{hygrometer.PVVXServiceID: pvvxPayload}},
		b: {Addr: b},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- r.Run(ctx)
	}()

	r.Enqueue(added(a))
	r.Enqueue(added(b))
	r.Enqueue(removed(a))
	r.Enqueue(added(a))

	deadline := time.Now().Add(2 * time.Second)

	for len(sink.all()) < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for results, got %v", sink.all())
		}

		time.Sleep(5 * time.Millisecond)
	}

	results := sink.all()
	order := []device.Address{a, b, a}

	for i, want := range order {
		if got := results[i].Advertisement.Addr; got != want {
			t.Fatalf("result %d: got %v, wanted %v", i, got, want)
		}
	}

	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run(): got error %v, wanted %v", err, context.Canceled)
	}
}
