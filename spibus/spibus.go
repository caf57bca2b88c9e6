// Package spibus drives the board's SPI controller. One bus maps onto one
// hardware controller on the board; its clock configuration is latched by a
// single init request, and every transaction is one write request followed
// by an optional read request, bounded by the board's transfer buffer.
package spibus

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/openfet/gofet/board"
)

// Controller is the subset of the board the bus needs.
type Controller interface {
	SendControlRequest(req board.Request, value uint16, data []byte) error
	ReceiveControlRequest(req board.Request, length int) ([]byte, error)
}

var (
	// ErrBufferSize is returned when a transfer, after padding, would not
	// fit the board's receive buffer. No transport call is made.
	ErrBufferSize = errors.New("transfer exceeds the board's receive buffer")

	// ErrNegativeLength is returned for a negative receive length.
	ErrNegativeLength = errors.New("receive length must not be negative")
)

// Config carries the bus parameters. The bit frequency on the wire is
// PCLK / (ClockPrescaleRate * (SerialClockRate + 1)).
type Config struct {
	// Name is a display name for the bus.
	Name string
	// BufferSize is the size of the board's SPI transfer buffer; it caps
	// the length of a single transaction.
	BufferSize int
	// SerialClockRate is the number of prescaler-output clocks per bit on
	// the bus, minus one. Valid range 0 to 255.
	SerialClockRate int
	// ClockPrescaleRate is the even value between 2 and 254 by which PCLK
	// is divided to yield the prescaler output clock.
	ClockPrescaleRate int
}

// DefaultConfig returns the firmware's reset parameters.
func DefaultConfig() Config {
	return Config{
		Name:              "spi bus",
		BufferSize:        255,
		SerialClockRate:   2,
		ClockPrescaleRate: 100,
	}
}

func (c Config) validate() error {
	if c.BufferSize < 1 {
		return fmt.Errorf("buffer size %d must be positive", c.BufferSize)
	}
	if c.SerialClockRate < 0 || c.SerialClockRate > 255 {
		return fmt.Errorf("serial clock rate %d must be between 0 and 255", c.SerialClockRate)
	}
	if c.ClockPrescaleRate < 2 || c.ClockPrescaleRate > 254 {
		return fmt.Errorf("clock prescale rate %d must be between 2 and 254", c.ClockPrescaleRate)
	}
	if c.ClockPrescaleRate%2 != 0 {
		return fmt.Errorf("clock prescale rate %d must be even", c.ClockPrescaleRate)
	}
	return nil
}

// SPIBus represents one SPI controller on the board. The bus holds a
// non-owning reference to the board it belongs to and never outlives it.
type SPIBus struct {
	ctrl       Controller
	name       string
	bufferSize int
	clockWord  uint16

	mu      sync.Mutex // serialises the write/read pair of a transaction
	devices []*Device
}

// New validates cfg, computes the 16-bit clock configuration word and
// issues the init request that latches it in the board firmware. A
// transport failure propagates unchanged.
func New(ctrl Controller, cfg Config) (*SPIBus, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid SPI bus config: %w", err)
	}

	bus := &SPIBus{
		ctrl:       ctrl,
		name:       cfg.Name,
		bufferSize: cfg.BufferSize,
		clockWord:  uint16(cfg.SerialClockRate)<<8 | uint16(cfg.ClockPrescaleRate),
	}

	if err := ctrl.SendControlRequest(board.SPIInit, bus.clockWord, nil); err != nil {
		return nil, err
	}

	slog.Info("SPI bus initialised", "name", bus.name,
		"clockword", fmt.Sprintf("0x%04x", bus.clockWord), "buffersize", bus.bufferSize)
	return bus, nil
}

// Name returns the display name of the bus.
func (b *SPIBus) Name() string {
	return b.name
}

// ClockWord returns the configuration word sent with the init request,
// (SerialClockRate << 8) | ClockPrescaleRate.
func (b *SPIBus) ClockWord() uint16 {
	return b.clockWord
}

// BufferSize returns the transaction length cap.
func (b *SPIBus) BufferSize() int {
	return b.bufferSize
}

// AttachDevice appends a device to the bus registry. Typically called by
// the device as it is constructed. Attachment is append-only; there is no
// duplicate check.
func (b *SPIBus) AttachDevice(d *Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices = append(b.devices, d)
}

// Devices returns the attached devices in attachment order.
func (b *SPIBus) Devices() []*Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Device(nil), b.devices...)
}

// Transfer sends data over the bus and reads back the same number of
// bytes.
func (b *SPIBus) Transfer(data []byte) ([]byte, error) {
	return b.TransferN(data, len(data))
}

// TransferN sends data and reads back receiveLength bytes. When
// receiveLength exceeds len(data), the transmitted payload is extended
// with zero bytes so both directions converge on the larger length; the
// caller's slice is never modified. When receiveLength is zero, no read
// request is issued and an empty slice is returned.
func (b *SPIBus) TransferN(data []byte, receiveLength int) ([]byte, error) {
	if receiveLength < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeLength, receiveLength)
	}

	payload := data
	if receiveLength > len(data) {
		// Pad a locally owned copy rather than growing the caller's slice.
		payload = make([]byte, receiveLength)
		copy(payload, data)
	}

	if len(payload) > b.bufferSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrBufferSize, len(payload), b.bufferSize)
	}

	// The firmware pairs each read with the preceding write; the lock keeps
	// concurrent callers from interleaving the two requests.
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ctrl.SendControlRequest(board.SPIWrite, 0, payload); err != nil {
		return nil, err
	}

	if receiveLength == 0 {
		return []byte{}, nil
	}
	return b.ctrl.ReceiveControlRequest(board.SPIRead, receiveLength)
}
