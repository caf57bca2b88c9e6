package board

import (
	"fmt"
	"log/slog"

	"github.com/google/gousb"

	"github.com/openfet/gofet/config"
)

// usbTransport drives a real board through libusb.
type usbTransport struct {
	ctx *gousb.Context
	dev *gousb.Device
}

// OpenUSB finds the board by the configured vendor/product ID and returns a
// Board bound to it.
func OpenUSB(cfg config.USBConfig) (*Board, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(cfg.VendorID), gousb.ID(cfg.ProductID))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("failed to open USB device %04x:%04x: %w", cfg.VendorID, cfg.ProductID, err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("no board found with ID %04x:%04x", cfg.VendorID, cfg.ProductID)
	}

	dev.ControlTimeout = cfg.ControlTimeout

	slog.Info("Opened board", "vid", fmt.Sprintf("%04x", cfg.VendorID),
		"pid", fmt.Sprintf("%04x", cfg.ProductID), "timeout", cfg.ControlTimeout)

	return New(&usbTransport{ctx: ctx, dev: dev}), nil
}

func (t *usbTransport) Control(requestType, request uint8, value, index uint16, data []byte) (int, error) {
	return t.dev.Control(requestType, request, value, index, data)
}

func (t *usbTransport) Close() error {
	err := t.dev.Close()
	if cerr := t.ctx.Close(); err == nil {
		err = cerr
	}
	return err
}
