package spibus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openfet/gofet/board"
)

// scriptedController records every request and plays back canned read
// responses.
type scriptedController struct {
	sends    []sendCall
	receives []receiveCall
	readData []byte
	sendErr  error
	recvErr  error
}

type sendCall struct {
	req   board.Request
	value uint16
	data  []byte
}

type receiveCall struct {
	req    board.Request
	length int
}

func (c *scriptedController) SendControlRequest(req board.Request, value uint16, data []byte) error {
	c.sends = append(c.sends, sendCall{req: req, value: value, data: append([]byte(nil), data...)})
	return c.sendErr
}

func (c *scriptedController) ReceiveControlRequest(req board.Request, length int) ([]byte, error) {
	c.receives = append(c.receives, receiveCall{req: req, length: length})
	if c.recvErr != nil {
		return nil, c.recvErr
	}
	out := make([]byte, length)
	copy(out, c.readData)
	return out, nil
}

func newTestBus(t *testing.T, ctrl *scriptedController, cfg Config) *SPIBus {
	t.Helper()
	bus, err := New(ctrl, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return bus
}

func TestNewSendsClockWord(t *testing.T) {
	ctrl := &scriptedController{}
	bus := newTestBus(t, ctrl, DefaultConfig())

	assert.Equal(t, uint16(0x0264), bus.ClockWord(), "(2 << 8) | 100 should be 0x0264")

	assert.Len(t, ctrl.sends, 1)
	assert.Equal(t, board.SPIInit, ctrl.sends[0].req)
	assert.Equal(t, uint16(0x0264), ctrl.sends[0].value)
	assert.Empty(t, ctrl.sends[0].data, "init carries no data bytes")
}

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero buffer", func(c *Config) { c.BufferSize = 0 }},
		{"negative serial clock rate", func(c *Config) { c.SerialClockRate = -1 }},
		{"serial clock rate too big", func(c *Config) { c.SerialClockRate = 256 }},
		{"prescale too small", func(c *Config) { c.ClockPrescaleRate = 0 }},
		{"prescale too big", func(c *Config) { c.ClockPrescaleRate = 256 }},
		{"odd prescale", func(c *Config) { c.ClockPrescaleRate = 99 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &scriptedController{}
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(ctrl, cfg)
			assert.Error(t, err)
			assert.Empty(t, ctrl.sends, "no init request may be sent for an invalid config")
		})
	}
}

func TestNewPropagatesInitFailure(t *testing.T) {
	initErr := errors.New("device gone")
	ctrl := &scriptedController{sendErr: initErr}
	_, err := New(ctrl, DefaultConfig())
	assert.ErrorIs(t, err, initErr)
}

func TestTransferWriteThenRead(t *testing.T) {
	ctrl := &scriptedController{readData: []byte{9, 8, 7}}
	bus := newTestBus(t, ctrl, DefaultConfig())

	got, err := bus.Transfer([]byte{1, 2, 3})
	assert.NoError(t, err)
	assert.Equal(t, []byte{9, 8, 7}, got, "read result is returned verbatim")

	assert.Len(t, ctrl.sends, 2, "init plus exactly one write")
	assert.Equal(t, board.SPIWrite, ctrl.sends[1].req)
	assert.Equal(t, []byte{1, 2, 3}, ctrl.sends[1].data, "payload is sent unmodified")

	assert.Len(t, ctrl.receives, 1)
	assert.Equal(t, board.SPIRead, ctrl.receives[0].req)
	assert.Equal(t, 3, ctrl.receives[0].length, "read length defaults to the send length")
}

func TestTransferNPadsWithZeros(t *testing.T) {
	ctrl := &scriptedController{}
	bus := newTestBus(t, ctrl, DefaultConfig())

	data := []byte{0xAA, 0xBB}
	_, err := bus.TransferN(data, 5)
	assert.NoError(t, err)

	assert.Equal(t, []byte{0xAA, 0xBB, 0, 0, 0}, ctrl.sends[1].data,
		"payload is extended with zeros up to the receive length")
	assert.Equal(t, 5, ctrl.receives[0].length)
}

func TestTransferNDoesNotMutateCaller(t *testing.T) {
	ctrl := &scriptedController{}
	bus := newTestBus(t, ctrl, DefaultConfig())

	backing := make([]byte, 2, 8)
	backing[0] = 1
	backing[1] = 2

	_, err := bus.TransferN(backing, 6)
	assert.NoError(t, err)

	assert.Equal(t, []byte{1, 2}, backing)
	assert.Equal(t, byte(0), backing[:cap(backing)][2],
		"padding must not spill into the caller's backing array")
}

func TestTransferNZeroReceiveLength(t *testing.T) {
	ctrl := &scriptedController{}
	bus := newTestBus(t, ctrl, DefaultConfig())

	got, err := bus.TransferN([]byte{1, 2, 3}, 0)
	assert.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got, "zero receive length returns an empty slice")

	assert.Len(t, ctrl.sends, 2, "the write still happens")
	assert.Empty(t, ctrl.receives, "no read request may be issued")
}

func TestTransferNNegativeReceiveLength(t *testing.T) {
	ctrl := &scriptedController{}
	bus := newTestBus(t, ctrl, DefaultConfig())

	_, err := bus.TransferN([]byte{1}, -1)
	assert.ErrorIs(t, err, ErrNegativeLength)
	assert.Len(t, ctrl.sends, 1, "no transport call beyond the init")
}

func TestTransferBufferSizeEnforced(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferSize = 4
	ctrl := &scriptedController{}
	bus := newTestBus(t, ctrl, cfg)

	// Oversized payload.
	_, err := bus.Transfer([]byte{1, 2, 3, 4, 5})
	assert.ErrorIs(t, err, ErrBufferSize)

	// Payload fits but the padded length does not.
	_, err = bus.TransferN([]byte{1, 2}, 5)
	assert.ErrorIs(t, err, ErrBufferSize)

	assert.Len(t, ctrl.sends, 1, "failed transfers must not touch the transport")
	assert.Empty(t, ctrl.receives)

	// The boundary itself is fine.
	_, err = bus.Transfer([]byte{1, 2, 3, 4})
	assert.NoError(t, err)
}

func TestTransferPropagatesTransportErrors(t *testing.T) {
	writeErr := errors.New("write stalled")
	ctrl := &scriptedController{}
	bus := newTestBus(t, ctrl, DefaultConfig())

	ctrl.sendErr = writeErr
	_, err := bus.Transfer([]byte{1})
	assert.ErrorIs(t, err, writeErr)
	assert.Empty(t, ctrl.receives, "no read after a failed write")

	ctrl.sendErr = nil
	ctrl.recvErr = errors.New("read stalled")
	_, err = bus.Transfer([]byte{1})
	assert.ErrorIs(t, err, ctrl.recvErr)
}

func TestAttachDeviceOrder(t *testing.T) {
	ctrl := &scriptedController{}
	bus := newTestBus(t, ctrl, DefaultConfig())

	devA := NewDevice(bus, "flash")
	devB := NewDevice(bus, "adc")

	devices := bus.Devices()
	assert.Equal(t, []*Device{devA, devB}, devices, "attachment order is preserved")

	// Attaching the same device again is not deduplicated.
	bus.AttachDevice(devA)
	assert.Len(t, bus.Devices(), 3)
}

func TestDeviceTransferDelegates(t *testing.T) {
	ctrl := &scriptedController{readData: []byte{0x42}}
	bus := newTestBus(t, ctrl, DefaultConfig())

	dev := NewDevice(bus, "eeprom")
	assert.Equal(t, "eeprom", dev.Name())

	got, err := dev.Transfer([]byte{0x05})
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x42}, got)
	assert.Equal(t, board.SPIWrite, ctrl.sends[1].req)
}
