package ble

import (
	"fmt"
	"slices"
)

// Backend selects the radio stack used for scanning.
type Backend string

const (
	BackendHCI   Backend = "hci"
	BackendBlueZ Backend = "bluez"
)

var allBackends = []Backend{BackendHCI, BackendBlueZ}

// *flag.Value
func (b *Backend) String() string {
	return string(*b)
}

func (b *Backend) Set(v string) error {
	if v == "" {
		*b = BackendHCI
		return nil
	}

	backend := Backend(v)

	if !slices.Contains(allBackends, backend) {
		return fmt.Errorf("unknown bluetooth backend %v (must be one of %v)", backend, allBackends)
	}

	*b = backend
	return nil
}
