package ble

import (
	"sync"
	"time"

	"github.com/robertof/go-hygrometer-scanner/device"
)

// deviceCache holds the merged advertisement data of every device seen recently. It outlives
// discovery sessions so that lookups for devices announced by a stopped session still work.
type deviceCache struct {
	mu      sync.Mutex
	devices map[device.Address]*device.Advertisement
}

func newDeviceCache() *deviceCache {
	return &deviceCache{
		devices: make(map[device.Address]*device.Advertisement),
	}
}

func (c *deviceCache) store(a device.Advertisement) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if known, ok := c.devices[a.Addr]; ok {
		known.Merge(a)
		return
	}

	a = a.Clone()
	c.devices[a.Addr] = &a
}

func (c *deviceCache) get(addr device.Address) (device.Advertisement, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	known, ok := c.devices[addr]
	if !ok {
		return device.Advertisement{}, false
	}

	return known.Clone(), true
}

func (c *deviceCache) evictSeenBefore(t time.Time) (evicted int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for addr, known := range c.devices {
		if known.SeenAt.Before(t) {
			delete(c.devices, addr)
			evicted += 1
		}
	}

	return evicted
}
