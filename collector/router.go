package collector

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robertof/go-hygrometer-scanner/collector/model"
	"github.com/robertof/go-hygrometer-scanner/device"
	"github.com/robertof/go-hygrometer-scanner/device/hygrometer"
	"github.com/rs/zerolog/log"
)

var (
	advertisementsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hygrometer_scanner_advertisements_total",
		Help: "Device snapshots classified, by packet format.",
	}, []string{"format"})
	decodeFailuresCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hygrometer_scanner_decode_failures_total",
		Help: "Device snapshots that failed to decode, by packet format.",
	}, []string{"format"})
	fetchFailuresCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hygrometer_scanner_device_fetch_failures_total",
		Help: "Device snapshots that could not be retrieved from the radio.",
	})
)

func RegisterMetrics(reg prometheus.Registerer) {
	// export every format from the first scrape on.
	for _, f := range hygrometer.Formats() {
		advertisementsCounter.WithLabelValues(f.String())

		if f != hygrometer.FormatUnknown {
			decodeFailuresCounter.WithLabelValues(f.String())
		}
	}

	reg.MustRegister(
		advertisementsCounter,
		decodeFailuresCounter,
		fetchFailuresCounter,
	)
}

// DeviceSource returns the current advertisement data of a device.
type DeviceSource interface {
	Device(addr device.Address) (device.Advertisement, error)
}

// Sink receives every classification/decoding outcome.
type Sink interface {
	Report(res model.DeviceResult)
}

// Router turns discovery notifications into readings. Each device is processed once per
// presence: again only after it has been removed.
type Router struct {
	// OnDecode, if set, is called after every successful decode, even one without values.
	OnDecode func()

	source DeviceSource
	sink   Sink
	seen   *SeenSet
	queue  *queue[device.Event]
}

func NewRouter(source DeviceSource, sink Sink) *Router {
	return &Router{
		source: source,
		sink:   sink,
		seen:   NewSeenSet(),
		queue:  newQueue[device.Event](),
	}
}

// Enqueue schedules ev for processing by Run. It never blocks.
func (r *Router) Enqueue(ev device.Event) {
	r.queue.push(ev)
}

// Pending returns the number of queued events.
func (r *Router) Pending() int {
	return r.queue.len()
}

func (r *Router) Seen() *SeenSet {
	return r.seen
}

// Run processes queued events in order until ctx is done.
func (r *Router) Run(ctx context.Context) error {
	log.Debug().Msg("Device event router started")

	for {
		ev, err := r.queue.pop(ctx)

		if err != nil {
			log.Debug().Msg("Device event router is shutting down")
			return err
		}

		r.Handle(ev)
	}
}

// Handle processes a single event synchronously.
func (r *Router) Handle(ev device.Event) {
	switch ev.Type {
	case device.DeviceAdded:
		if !r.seen.Add(ev.Addr) {
			log.Trace().Stringer("Addr", ev.Addr).Msg("Ignoring add notification for known device")
			return
		}

		r.process(ev.Addr)
	case device.DeviceRemoved:
		if r.seen.Remove(ev.Addr) {
			log.Debug().Stringer("Addr", ev.Addr).Msg("Device removed")
		}
	default:
		log.Warn().Stringer("Event", ev).Msg("Ignoring unknown device event")
	}
}

func (r *Router) process(addr device.Address) {
	a, err := r.source.Device(addr)

	if err != nil {
		fetchFailuresCounter.Inc()

		log.Warn().
			Err(err).
			Stringer("Addr", addr).
			Msg("Failed to fetch device data")

		return
	}

	format, payload := hygrometer.Classify(a.ServiceData)

	res := model.DeviceResult{
		Advertisement: a,
		Format:        format,
		Payload:       payload,
	}

	if format != hygrometer.FormatUnknown {
		res.Reading, res.Error = hygrometer.Decode(format, payload)
	}

	advertisementsCounter.WithLabelValues(format.String()).Inc()

	if res.Error != nil {
		decodeFailuresCounter.WithLabelValues(format.String()).Inc()
	}

	log.Trace().
		Stringer("Addr", addr).
		Stringer("Format", format).
		Stringer("Result", res.Result).
		Msg("Processed device advertisement")

	r.sink.Report(res)

	if res.Decoded() && r.OnDecode != nil {
		r.OnDecode()
	}
}
