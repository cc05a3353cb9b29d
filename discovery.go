package main

import (
	"context"

	"github.com/robertof/go-hygrometer-scanner/ble"
	"github.com/robertof/go-hygrometer-scanner/device"
	"github.com/robertof/go-hygrometer-scanner/device/hygrometer"
	"github.com/robertof/go-hygrometer-scanner/utils"
	"github.com/rs/zerolog/log"
)

func doDeviceDiscovery(cfg config, handle *ble.Handle) {
	log.Info().
		Dur("DurationSec", cfg.DiscoverDuration).
		Msg("Starting in device discovery mode - collecting devices...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DiscoverDuration)
	defer cancel()

	ctx = ble.WrapContextWithSigHandler(ctx, cancel)

	devices := make(map[device.Address]*device.Advertisement)

	err := handle.ScanAll(ctx, func(a device.Advertisement) {
		if known, ok := devices[a.Addr]; ok {
			known.Merge(a)
		} else {
			merged := a.Clone()
			devices[a.Addr] = &merged
		}

		log.Debug().
			Stringer("Addr", a.Addr).
			Str("Name", a.Name).
			Int("RSSI", a.RSSI).
			Strs("Services", utils.Strings(utils.SortedKeys(a.ServiceData))).
			Msg("Received device advertisement")
	})

	if err != nil && !utils.IsCanceled(err) {
		log.Fatal().Err(err).Msg("Failed to initiate scan")
	}

	log.Info().Int("Found", len(devices)).Msg("Finished device discovery")

	for _, addr := range utils.SortedKeys(devices) {
		a := devices[addr]
		format, payload := hygrometer.Classify(a.ServiceData)

		log.Info().
			Stringer("Addr", addr).
			Str("Name", a.Name).
			Int("RSSI", a.RSSI).
			Stringer("Format", format).
			Hex("Payload", payload).
			Strs("Services", utils.Strings(utils.SortedKeys(a.ServiceData))).
			Msg("Found device")
	}
}
