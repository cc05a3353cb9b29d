package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertof/go-hygrometer-scanner/ble"
	"github.com/robertof/go-hygrometer-scanner/collector"
	"github.com/robertof/go-hygrometer-scanner/metrics"
	"github.com/robertof/go-hygrometer-scanner/supervisor"
	"github.com/robertof/go-hygrometer-scanner/utils"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	zerolog.DurationFieldUnit = time.Second
	zerolog.TimeFieldFormat = time.RFC3339Nano

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05.000",
	})

	cfg, err := parseArgs(os.Args[0], os.Args[1:], os.Stderr)

	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}

	if cfg.Trace || os.Getenv("TRACE") != "" {
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	} else if cfg.Debug || os.Getenv("DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	handle, err := initBle(cfg)

	if err != nil {
		log.Fatal().Err(err).Stringer("Backend", &cfg.Backend).Msg("Failed to initialize Bluetooth device")
	}

	if cfg.DiscoverDevices {
		doDeviceDiscovery(cfg, handle)
		handle.Stop()
		return
	}

	log.Info().
		Str("BindAddr", cfg.BindAddress).
		Stringer("Backend", &cfg.Backend).
		Array("Sensors", utils.ToZeroLogArray(cfg.Sensors)).
		Dur("DeviceTTLSec", cfg.DeviceTTL).
		Msg("Starting with the specified configuration")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = run(ble.WrapContextWithSigHandler(ctx, cancel), cfg, handle)
	handle.Stop()

	if err != nil && !utils.IsCanceled(err) {
		log.Fatal().Err(err).Msg("Scanner terminated")
	}

	log.Info().Msg("Bye")
}

func initBle(cfg config) (*ble.Handle, error) {
	var (
		handle *ble.Handle
		err    error
	)

	switch cfg.Backend {
	case ble.BackendBlueZ:
		if cfg.ActiveScan {
			log.Warn().Msg("-active-scan has no effect with the 'bluez' backend")
		}

		handle, err = ble.InitBlueZ(cfg.BlueZAdapter)
	default:
		var flags ble.Flags

		if cfg.ActiveScan || cfg.DiscoverDevices {
			flags |= ble.FlagScanTypeActive
		}

		if cfg.AllowList && !cfg.DiscoverDevices {
			flags |= ble.FlagEnableDeviceAllowList
		}

		handle, err = ble.Init(cfg.BluetoothDeviceId, flags)
	}

	if err != nil {
		return nil, err
	}

	handle.DeviceTTL = cfg.DeviceTTL

	if cfg.AllowList && !cfg.DiscoverDevices {
		addrs := make([]net.HardwareAddr, len(cfg.Sensors))

		for i, s := range cfg.Sensors {
			addrs[i] = s.Addr.HardwareAddr()
		}

		if err := handle.SetAllowListedAddresses(addrs); err != nil {
			log.Error().Err(err).Msg("Failed to set device allow list")
		}
	}

	return handle, nil
}

// run wires the radio, the supervisor and the event router together and blocks until ctx is
// done or one of them fails.
func run(ctx context.Context, cfg config, handle *ble.Handle) error {
	router := collector.NewRouter(handle, collector.NewLogSink(cfg.sensorNames(), nil))

	sup := supervisor.New(
		supervisor.RadioFunc(func(ctx context.Context) (supervisor.Session, error) {
			s, err := handle.Discover(ctx)
			if err != nil {
				return nil, err
			}

			return s, nil
		}),
		cfg.supervisorOptions(),
	)

	router.OnDecode = sup.Watchdog().RecordDecode
	sup.Forward = router.Enqueue

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return router.Run(ctx)
	})

	g.Go(func() error {
		return sup.Run(ctx)
	})

	if cfg.BindAddress != "" {
		srv := &http.Server{
			Addr:    cfg.BindAddress,
			Handler: newMetricsHandler(cfg, router, sup),
		}

		g.Go(func() error {
			log.Info().
				Str("ListenAddress", cfg.BindAddress).
				Msg("Starting Prometheus server")

			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("unable to bind on requested address: %w", err)
			}

			return nil
		})

		g.Go(func() error {
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func newMetricsHandler(cfg config, router *collector.Router, sup *supervisor.Supervisor) http.Handler {
	registry := prometheus.NewRegistry()

	collector.RegisterMetrics(registry)
	supervisor.RegisterMetrics(registry)

	metrics.RegisterCollector(
		func() metrics.Status {
			return metrics.Status{
				LastDecode:    sup.Watchdog().LastDecode(),
				SeenDevices:   router.Seen().Len(),
				PendingEvents: router.Pending(),
				Restarts:      sup.Restarts(),
				State:         sup.State().String(),
			}
		},
		registry,
	)

	if cfg.EnableMetamonitoring {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return mux
}
