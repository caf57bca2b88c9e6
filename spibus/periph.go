package spibus

import (
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/spi"
)

// Conn returns a periph.io spi.Conn view of the bus so existing periph.io
// chip drivers can run over the board. The board executes a transaction as
// a write followed by a read, so the connection is half-duplex.
func (b *SPIBus) Conn() spi.Conn {
	return &periphConn{bus: b}
}

type periphConn struct {
	bus *SPIBus
}

func (c *periphConn) String() string {
	return c.bus.name
}

func (c *periphConn) Duplex() conn.Duplex {
	return conn.Half
}

func (c *periphConn) Tx(w, r []byte) error {
	got, err := c.bus.TransferN(w, len(r))
	if err != nil {
		return err
	}
	copy(r, got)
	return nil
}

func (c *periphConn) TxPackets(p []spi.Packet) error {
	for _, pkt := range p {
		if pkt.BitsPerWord != 0 && pkt.BitsPerWord != 8 {
			return fmt.Errorf("unsupported bits per word: %d", pkt.BitsPerWord)
		}
		if err := c.Tx(pkt.W, pkt.R); err != nil {
			return err
		}
	}
	return nil
}
