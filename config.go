package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/robertof/go-hygrometer-scanner/ble"
	"github.com/robertof/go-hygrometer-scanner/device"
	"github.com/robertof/go-hygrometer-scanner/supervisor"
)

type config struct {
	Debug, Trace         bool
	BindAddress          string
	EnableMetamonitoring bool
	DiscoverDevices      bool
	DiscoverDuration     time.Duration
	Backend              ble.Backend
	BluetoothDeviceId    int
	BlueZAdapter         string
	ActiveScan           bool
	AllowList            bool
	DeviceTTL            time.Duration
	WatchdogSeconds      int
	CooldownSeconds      int
	PollInterval         time.Duration
	Sensors              []device.Sensor
}

type sensorList struct {
	list *[]device.Sensor
}

func (s *sensorList) String() string {
	if s.list == nil {
		return ""
	}

	names := make([]string, len(*s.list))

	for i, sensor := range *s.list {
		names[i] = sensor.String()
	}

	return strings.Join(names, "; ")
}

func (s *sensorList) Set(v string) error {
	sensor, err := device.SensorFromSpec(device.NewDeviceSpec(v))
	if err != nil {
		return fmt.Errorf("failed to parse sensor: %w", err)
	}

	for _, known := range *s.list {
		if known.Addr == sensor.Addr {
			return fmt.Errorf("sensor %v specified twice", sensor.Addr)
		}
	}

	*s.list = append(*s.list, sensor)

	return nil
}

func parseArgs(name string, args []string, output io.Writer) (config, error) {
	var cfg config

	cfg.Backend = ble.BackendHCI

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&cfg.BindAddress, "bind", "localhost:9102",
		"Where the metrics endpoint will bind to. Empty disables it")
	fs.BoolVar(&cfg.EnableMetamonitoring, "metamonitoring", true, "Enable metamonitoring metrics")
	fs.Var(&cfg.Backend, "backend", "Bluetooth backend (one of 'hci' or 'bluez')")
	fs.IntVar(&cfg.BluetoothDeviceId, "bluetooth-device", 0, "Bluetooth (HCI) device ID, for the 'hci' backend")
	fs.StringVar(&cfg.BlueZAdapter, "bluez-adapter", "hci0", "BlueZ adapter name, for the 'bluez' backend")
	fs.BoolVar(&cfg.ActiveScan, "active-scan", false, "Run active scans (requests scan responses)")
	fs.BoolVar(&cfg.AllowList, "allow-list", false,
		"Only scan for the sensors given with -sensor (requires the 'hci' backend)")
	fs.DurationVar(&cfg.DeviceTTL, "device-ttl", ble.DefaultDeviceTTL,
		"Devices silent for longer than this are considered gone. 0 disables expiry")
	fs.IntVar(&cfg.WatchdogSeconds, "watchdog", int(supervisor.DefaultWatchdogTimeout/time.Second),
		"Restart discovery when nothing was decoded for this many seconds")
	fs.IntVar(&cfg.CooldownSeconds, "cooldown", int(supervisor.DefaultCooldown/time.Second),
		"Seconds to wait before starting discovery again")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", supervisor.DefaultPollInterval,
		"How often the watchdog is checked")
	fs.BoolVar(&cfg.DiscoverDevices, "discover", false, "Discover available BLE devices and quit")
	fs.DurationVar(&cfg.DiscoverDuration, "discover-duration", 5*time.Second,
		"How long to scan for in discovery mode")
	fs.BoolVar(&cfg.Debug, "debug", false, "Enable debug logs")
	fs.BoolVar(&cfg.Trace, "trace", false, "Enable trace logs")
	fs.Var(&sensorList{list: &cfg.Sensors}, "sensor",
		"Known sensor in the form of `addr=A4:C1:38:xx:xx:xx,name=kitchen`. Can be repeated")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c config) validate() error {
	var errs []error

	if c.WatchdogSeconds <= 0 {
		errs = append(errs, fmt.Errorf("-watchdog must be positive, got %d", c.WatchdogSeconds))
	}

	if c.CooldownSeconds <= 0 {
		errs = append(errs, fmt.Errorf("-cooldown must be positive, got %d", c.CooldownSeconds))
	}

	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("-poll-interval must be positive, got %v", c.PollInterval))
	}

	if c.DeviceTTL < 0 {
		errs = append(errs, fmt.Errorf("-device-ttl must not be negative, got %v", c.DeviceTTL))
	}

	if c.DiscoverDuration <= 0 {
		errs = append(errs, fmt.Errorf("-discover-duration must be positive, got %v", c.DiscoverDuration))
	}

	if c.AllowList {
		if c.Backend != ble.BackendHCI {
			errs = append(errs, errors.New("-allow-list requires the 'hci' backend"))
		}

		if len(c.Sensors) == 0 {
			errs = append(errs, errors.New("-allow-list requires at least one -sensor"))
		}
	}

	return errors.Join(errs...)
}

func (c config) supervisorOptions() supervisor.Options {
	return supervisor.Options{
		WatchdogTimeout: time.Duration(c.WatchdogSeconds) * time.Second,
		Cooldown:        time.Duration(c.CooldownSeconds) * time.Second,
		PollInterval:    c.PollInterval,
	}
}

func (c config) sensorNames() map[device.Address]string {
	names := make(map[device.Address]string, len(c.Sensors))

	for _, s := range c.Sensors {
		names[s.Addr] = s.Name
	}

	return names
}
