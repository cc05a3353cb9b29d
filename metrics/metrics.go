package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	descSinceLastDecode = prometheus.NewDesc(
		"hygrometer_scanner_seconds_since_last_decode",
		"Seconds elapsed since a reading was last decoded.",
		nil,
		nil,
	)

	descSeenDevices = prometheus.NewDesc(
		"hygrometer_scanner_seen_devices",
		"Devices currently marked as present by the event router.",
		nil,
		nil,
	)

	descPendingEvents = prometheus.NewDesc(
		"hygrometer_scanner_pending_events",
		"Device events waiting to be processed by the event router.",
		nil,
		nil,
	)

	descRestartCount = prometheus.NewDesc(
		"hygrometer_scanner_watchdog_restart_count",
		"In-memory watchdog restart counter. Wraps around on overflow.",
		nil,
		nil,
	)

	descState = prometheus.NewDesc(
		"hygrometer_scanner_supervisor_state_info",
		"Current state of the discovery supervisor.",
		[]string{"state"},
		nil,
	)
)

// Status is a point-in-time view of the scanner.
type Status struct {
	LastDecode    time.Time
	SeenDevices   int
	PendingEvents int
	Restarts      uint64
	State         string
}

type CollectFunc func() Status

type collector struct {
	CollectFunc
	now func() time.Time
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		descSinceLastDecode,
		descSeenDevices,
		descPendingEvents,
		descRestartCount,
		descState,
	} {
		ch <- d
	}
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	st := c.CollectFunc()

	if !st.LastDecode.IsZero() {
		ch <- prometheus.MustNewConstMetric(
			descSinceLastDecode,
			prometheus.GaugeValue,
			c.now().Sub(st.LastDecode).Seconds(),
		)
	}

	ch <- prometheus.MustNewConstMetric(descSeenDevices, prometheus.GaugeValue, float64(st.SeenDevices))
	ch <- prometheus.MustNewConstMetric(descPendingEvents, prometheus.GaugeValue, float64(st.PendingEvents))
	ch <- prometheus.MustNewConstMetric(descRestartCount, prometheus.GaugeValue, float64(st.Restarts))

	if st.State != "" {
		ch <- prometheus.MustNewConstMetric(descState, prometheus.GaugeValue, 1, st.State)
	}
}

func RegisterCollector(f CollectFunc, reg prometheus.Registerer) {
	c := &collector{
		CollectFunc: f,
		now:         time.Now,
	}

	reg.MustRegister(c)
}
