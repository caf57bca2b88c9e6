// Package board talks to the microcontroller board over USB vendor control
// requests. It owns the transport; peripherals like the SPI bus are built
// on top of the two request primitives it exposes.
package board

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// bmRequestType values for vendor requests addressed to the device.
const (
	vendorRequestOut = 0x40 // host to device
	vendorRequestIn  = 0xC0 // device to host
)

// maxStringResponse bounds variable-length string reads from the firmware.
const maxStringResponse = 255

// ErrShortRead is returned when an IN transfer moves fewer bytes than the
// caller asked for.
var ErrShortRead = errors.New("control read returned fewer bytes than requested")

// Transport issues one control transfer to the board and returns the number
// of bytes moved in the data stage. It is implemented by the gousb-backed
// USB transport and by the simulated board.
type Transport interface {
	Control(requestType, request uint8, value, index uint16, data []byte) (int, error)
	Close() error
}

// TraceEntry describes one completed control request. Data is a copy and
// may be retained by the observer.
type TraceEntry struct {
	Time      time.Time
	Direction Direction
	Request   Request
	Value     uint16
	Data      []byte
	Err       error
}

// Board is the host-side handle for one attached board.
type Board struct {
	transport Transport
	trace     func(TraceEntry)
}

// New wraps a Transport. Ownership of the transport passes to the Board;
// Close closes it.
func New(t Transport) *Board {
	return &Board{transport: t}
}

// SetTrace installs an observer that is called synchronously after every
// control request, successful or not. Pass nil to disable tracing.
func (b *Board) SetTrace(fn func(TraceEntry)) {
	b.trace = fn
}

func (b *Board) emit(dir Direction, req Request, value uint16, data []byte, err error) {
	if b.trace == nil {
		return
	}
	entry := TraceEntry{
		Time:      time.Now(),
		Direction: dir,
		Request:   req,
		Value:     value,
		Err:       err,
	}
	if len(data) > 0 {
		entry.Data = append([]byte(nil), data...)
	}
	b.trace(entry)
}

// SendControlRequest issues a vendor OUT request carrying value and data.
func (b *Board) SendControlRequest(req Request, value uint16, data []byte) error {
	_, err := b.transport.Control(vendorRequestOut, uint8(req), value, 0, data)
	b.emit(Out, req, value, data, err)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", req, err)
	}
	return nil
}

// ReceiveControlRequest issues a vendor IN request and returns exactly
// length bytes. A short response is an error.
func (b *Board) ReceiveControlRequest(req Request, length int) ([]byte, error) {
	buf := make([]byte, length)
	n, err := b.transport.Control(vendorRequestIn, uint8(req), 0, 0, buf)
	if err != nil {
		b.emit(In, req, 0, nil, err)
		return nil, fmt.Errorf("%s request failed: %w", req, err)
	}
	if n != length {
		err = fmt.Errorf("%s: %w: got %d, want %d", req, ErrShortRead, n, length)
		b.emit(In, req, 0, buf[:n], err)
		return nil, err
	}
	b.emit(In, req, 0, buf, nil)
	return buf, nil
}

// receiveUpTo is like ReceiveControlRequest but tolerates short responses,
// for firmware replies of variable length.
func (b *Board) receiveUpTo(req Request, max int) ([]byte, error) {
	buf := make([]byte, max)
	n, err := b.transport.Control(vendorRequestIn, uint8(req), 0, 0, buf)
	b.emit(In, req, 0, buf[:n], err)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", req, err)
	}
	return buf[:n], nil
}

// Info summarises the board's identity as reported by the firmware.
type Info struct {
	BoardID uint32
	Version string
	PartID  string
	Serial  string
}

// BoardID reads the numeric board identifier.
func (b *Board) BoardID() (uint32, error) {
	raw, err := b.ReceiveControlRequest(ReadBoardID, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(raw), nil
}

// FirmwareVersion reads the firmware version string.
func (b *Board) FirmwareVersion() (string, error) {
	raw, err := b.receiveUpTo(ReadVersionString, maxStringResponse)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(raw), "\x00"), nil
}

// PartIDAndSerial reads the MCU part ID (8 bytes) and serial number
// (16 bytes), hex formatted.
func (b *Board) PartIDAndSerial() (string, string, error) {
	raw, err := b.ReceiveControlRequest(ReadPartIDSerial, 24)
	if err != nil {
		return "", "", err
	}
	return fmt.Sprintf("%x", raw[:8]), fmt.Sprintf("%x", raw[8:]), nil
}

// Info gathers all identity reads into one struct.
func (b *Board) Info() (Info, error) {
	id, err := b.BoardID()
	if err != nil {
		return Info{}, err
	}
	version, err := b.FirmwareVersion()
	if err != nil {
		return Info{}, err
	}
	partID, serial, err := b.PartIDAndSerial()
	if err != nil {
		return Info{}, err
	}
	return Info{BoardID: id, Version: version, PartID: partID, Serial: serial}, nil
}

// Close releases the underlying transport.
func (b *Board) Close() error {
	slog.Debug("Closing board transport")
	return b.transport.Close()
}
