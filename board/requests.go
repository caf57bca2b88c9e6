package board

import "fmt"

// Request is a vendor-specific control request number understood by the
// board firmware. The numbering is owned by the firmware; the host side
// only mirrors it.
type Request uint8

const (
	ReadBoardID       Request = 0x00
	ReadVersionString Request = 0x01
	ReadPartIDSerial  Request = 0x02

	SPIInit  Request = 0x20
	SPIWrite Request = 0x21
	SPIRead  Request = 0x22
)

var requestNames = map[Request]string{
	ReadBoardID:       "READ_BOARD_ID",
	ReadVersionString: "READ_VERSION_STRING",
	ReadPartIDSerial:  "READ_PARTID_SERIALNO",
	SPIInit:           "SPI_INIT",
	SPIWrite:          "SPI_WRITE",
	SPIRead:           "SPI_READ",
}

func (r Request) String() string {
	if name, ok := requestNames[r]; ok {
		return name
	}
	return fmt.Sprintf("VENDOR_0x%02X", uint8(r))
}

// Direction of a control transfer, as seen from the host.
type Direction uint8

const (
	Out Direction = iota // host to device
	In                   // device to host
)

func (d Direction) String() string {
	if d == In {
		return "IN"
	}
	return "OUT"
}
