package ble

import (
	"context"
	"fmt"

	"github.com/go-ble/ble"
	"github.com/robertof/go-hygrometer-scanner/device"
)

func WrapContextWithSigHandler(ctx context.Context, cancel func()) context.Context {
	return ble.WithSigHandler(ctx, cancel)
}

// ScanAll scans until ctx is done and passes every advertisement to onDevice. It does not
// touch the device cache and cannot run alongside a discovery session.
func (h *Handle) ScanAll(ctx context.Context, onDevice func(device.Advertisement)) error {
	h.mu.Lock()

	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}

	if h.active != nil && !h.active.finished() {
		h.mu.Unlock()
		return ErrSessionActive
	}

	h.mu.Unlock()

	if err := h.scanner.prepare(); err != nil {
		return fmt.Errorf("failed to initiate scan: %w", err)
	}

	if err := h.scanner.scan(ctx, onDevice); err != nil {
		return fmt.Errorf("failed to initiate scan: %w", err)
	}

	return nil
}
