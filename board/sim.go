package board

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned for any request issued after Close.
var ErrClosed = errors.New("transport is closed")

// simVersion is what the simulated firmware reports.
const simVersion = "gofet-sim"

// SimTransport is an in-memory stand-in for the board, used by the monitor
// demo mode and by tests. The SPI controller is a loopback: a read returns
// the bytes of the most recent write, zero-filled beyond its length.
type SimTransport struct {
	mu        sync.Mutex
	boardID   uint32
	clockWord uint16
	inited    bool
	payload   []byte
	closed    bool
}

// NewSimTransport creates a simulated board reporting the given board ID.
func NewSimTransport(boardID uint32) *SimTransport {
	return &SimTransport{boardID: boardID}
}

// ClockWord returns the value latched by the last SPI_INIT request.
func (t *SimTransport) ClockWord() uint16 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.clockWord
}

// LastWrite returns a copy of the most recent SPI_WRITE payload.
func (t *SimTransport) LastWrite() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.payload...)
}

func (t *SimTransport) Control(requestType, request uint8, value, index uint16, data []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, ErrClosed
	}

	switch requestType {
	case vendorRequestOut:
		return t.handleOut(Request(request), value, data)
	case vendorRequestIn:
		return t.handleIn(Request(request), data)
	default:
		return 0, fmt.Errorf("unsupported request type 0x%02x", requestType)
	}
}

func (t *SimTransport) handleOut(req Request, value uint16, data []byte) (int, error) {
	switch req {
	case SPIInit:
		t.clockWord = value
		t.inited = true
		return len(data), nil
	case SPIWrite:
		if !t.inited {
			return 0, fmt.Errorf("%s before %s", SPIWrite, SPIInit)
		}
		t.payload = append(t.payload[:0], data...)
		return len(data), nil
	default:
		return 0, fmt.Errorf("unsupported OUT request %s", req)
	}
}

func (t *SimTransport) handleIn(req Request, data []byte) (int, error) {
	switch req {
	case SPIRead:
		if !t.inited {
			return 0, fmt.Errorf("%s before %s", SPIRead, SPIInit)
		}
		n := copy(data, t.payload)
		for i := n; i < len(data); i++ {
			data[i] = 0
		}
		return len(data), nil
	case ReadBoardID:
		if len(data) < 4 {
			return 0, fmt.Errorf("%s needs a 4 byte buffer", req)
		}
		binary.LittleEndian.PutUint32(data, t.boardID)
		return 4, nil
	case ReadVersionString:
		return copy(data, simVersion), nil
	case ReadPartIDSerial:
		if len(data) < 24 {
			return 0, fmt.Errorf("%s needs a 24 byte buffer", req)
		}
		for i := 0; i < 24; i++ {
			data[i] = byte(i)
		}
		return 24, nil
	default:
		return 0, fmt.Errorf("unsupported IN request %s", req)
	}
}

func (t *SimTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
