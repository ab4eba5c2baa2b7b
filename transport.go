package sx1276

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// Transport gives exclusive, transaction-at-a-time access to the radio's registers.
//
// Every method holds the bus for the duration of one SPI transaction. When a
// chip-select pin is supplied it is driven low for the transaction and released
// afterwards, otherwise the spi.Conn is expected to frame the transfer itself.
// Interrupt edges never touch the Transport, they only enqueue a line index.
type Transport struct {
	mu   sync.Mutex
	conn spi.Conn
	cs   gpio.PinOut // optional, nil when the SPI driver handles CS
}

// NewTransport wraps an SPI connection. cs may be nil.
func NewTransport(conn spi.Conn, cs gpio.PinOut) *Transport {
	return &Transport{conn: conn, cs: cs}
}

// Write writes one register.
func (t *Transport) Write(reg Register, data byte) error {
	return t.WriteBurst(reg, []byte{data})
}

// WriteBurst writes buf starting at reg, the chip auto-increments the address
// (except for the FIFO register where that wouldn't be desirable).
func (t *Transport) WriteBurst(reg Register, buf []byte) error {
	w := make([]byte, len(buf)+1)
	w[0] = byte(reg) | 0x80
	copy(w[1:], buf)
	return t.tx(w, make([]byte, len(w)))
}

// Read reads one register.
func (t *Transport) Read(reg Register) (byte, error) {
	var b [1]byte
	err := t.ReadBurst(reg, b[:])
	return b[0], err
}

// ReadBurst fills buf with consecutive registers starting at reg.
func (t *Transport) ReadBurst(reg Register, buf []byte) error {
	w := make([]byte, len(buf)+1)
	w[0] = byte(reg) & 0x7f
	r := make([]byte, len(w))
	if err := t.tx(w, r); err != nil {
		return err
	}
	copy(buf, r[1:])
	return nil
}

func (t *Transport) tx(w, r []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cs != nil {
		if err := t.cs.Out(gpio.Low); err != nil {
			return fmt.Errorf("sx1276: chip select: %w", err)
		}
	}
	err := t.conn.Tx(w, r)
	if t.cs != nil {
		if csErr := t.cs.Out(gpio.High); csErr != nil && err == nil {
			err = csErr
		}
	}
	if err != nil {
		return fmt.Errorf("sx1276: spi transfer at %#02x: %w", w[0], err)
	}
	return nil
}
