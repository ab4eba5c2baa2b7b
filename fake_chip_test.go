package sx1276

import (
	"errors"
	"sync"
	"testing"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/spi"
)

type regWrite struct {
	reg Register
	val byte
}

// fakeChip simulates enough of an SX1276 behind an spi.Conn to exercise the driver:
// a register file with separate FSK and LoRa pages for 0x0d..0x3f, the FIFO with its
// auto-incrementing address pointer, write-1-to-clear IRQ flags and the image
// calibration running flag.
type fakeChip struct {
	mu        sync.Mutex
	regs      [0x80]byte // common registers and the FSK page
	lora      [0x80]byte // LoRa page
	fifo      [256]byte
	writes    []regWrite
	calStarts int
	calBusy   int  // reads of RegImageCal reporting running after each start
	calStuck  bool // never finish calibrating
	calLeft   int
	wideband  []byte // successive RegRssiWideBand values
	txErr     error
	sleeps    []time.Duration
}

func newFakeChip() *fakeChip {
	c := &fakeChip{calBusy: 3}
	c.regs[RegOpMode] = 0x09
	c.regs[RegFrfMsb] = 0x6c
	c.regs[RegFrfMid] = 0x80
	c.regs[RegFrfLsb] = 0x00
	c.regs[RegPaConfig] = 0x4f
	c.regs[RegPaDac] = 0x84
	c.regs[RegImageCal] = 0x82
	c.regs[RegVersion] = VersionSX1276
	return c
}

func (c *fakeChip) String() string      { return "fakeChip" }
func (c *fakeChip) Duplex() conn.Duplex { return conn.Half }
func (c *fakeChip) Halt() error         { return nil }
func (c *fakeChip) TxPackets(p []spi.Packet) error {
	return errors.New("fakeChip: TxPackets not supported")
}

func (c *fakeChip) Tx(w, r []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.txErr != nil {
		return c.txErr
	}
	if len(w) == 0 {
		return nil
	}
	reg := Register(w[0] & 0x7f)
	write := w[0]&0x80 != 0
	for i, b := range w[1:] {
		if write {
			c.write(reg, b)
		} else {
			r[i+1] = c.read(reg)
		}
		if reg != RegFifo {
			reg++
		}
	}
	return nil
}

// loraPage reports whether LongRangeMode maps the LoRa registers in.
func (c *fakeChip) loraPage() bool {
	return c.regs[RegOpMode]&byte(ModeLongRange) != 0
}

// at returns the register cell addressed by reg on the current page.
func (c *fakeChip) at(reg Register) *byte {
	if reg >= 0x0d && reg <= 0x3f && c.loraPage() {
		return &c.lora[reg]
	}
	return &c.regs[reg]
}

func (c *fakeChip) write(reg Register, v byte) {
	c.writes = append(c.writes, regWrite{reg, v})
	lora := c.loraPage()
	switch {
	case reg == RegFifo:
		c.fifo[c.lora[RegFifoAddrPtr]] = v
		c.lora[RegFifoAddrPtr]++
	case reg == RegIrqFlags && lora:
		c.lora[reg] &^= v
	case reg == RegImageCal && !lora:
		c.regs[reg] = v &^ imageCalStart
		if v&imageCalStart != 0 {
			c.calStarts++
			c.calLeft = c.calBusy
			if c.calLeft > 0 || c.calStuck {
				c.regs[reg] |= imageCalRunning
			}
		}
	default:
		*c.at(reg) = v
	}
}

func (c *fakeChip) read(reg Register) byte {
	lora := c.loraPage()
	switch {
	case reg == RegFifo:
		v := c.fifo[c.lora[RegFifoAddrPtr]]
		c.lora[RegFifoAddrPtr]++
		return v
	case reg == RegImageCal && !lora:
		v := c.regs[reg]
		if v&imageCalRunning != 0 && !c.calStuck {
			c.calLeft--
			if c.calLeft <= 0 {
				c.regs[reg] &^= imageCalRunning
			}
		}
		return v
	case reg == RegRssiWideBand && lora:
		if len(c.wideband) > 0 {
			v := c.wideband[0]
			c.wideband = c.wideband[1:]
			return v
		}
	}
	return *c.at(reg)
}

func (c *fakeChip) sleep(d time.Duration) {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
}

// reg returns a register on the page currently selected by RegOpMode.
func (c *fakeChip) reg(reg Register) byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.at(reg)
}

func (c *fakeChip) setReg(reg Register, v byte) {
	c.mu.Lock()
	*c.at(reg) = v
	c.mu.Unlock()
}

// fskReg and setFskReg access the FSK page regardless of RegOpMode.
func (c *fakeChip) fskReg(reg Register) byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs[reg]
}

func (c *fakeChip) setFskReg(reg Register, v byte) {
	c.mu.Lock()
	c.regs[reg] = v
	c.mu.Unlock()
}

// setIrq raises flags in RegIrqFlags, as the modem would.
func (c *fakeChip) setIrq(flags byte) {
	c.mu.Lock()
	c.lora[RegIrqFlags] |= flags
	c.mu.Unlock()
}

// loadFifo places a received packet at addr and points RegFifoRxCurrentAddr at it.
func (c *fakeChip) loadFifo(addr byte, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, b := range data {
		c.fifo[addr+byte(i)] = b
	}
	c.lora[RegFifoRxCurrentAddr] = addr
	c.lora[RegRxNbBytes] = byte(len(data))
}

// mark returns the current length of the write log, for use with writesSince.
func (c *fakeChip) mark() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func (c *fakeChip) writesSince(n int) []regWrite {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]regWrite(nil), c.writes[n:]...)
}

// valuesWritten lists the values written to reg since mark n.
func (c *fakeChip) valuesWritten(n int, reg Register) []byte {
	var vals []byte
	for _, w := range c.writesSince(n) {
		if w.reg == reg {
			vals = append(vals, w.val)
		}
	}
	return vals
}

func (c *fakeChip) sleepLog() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// antennaLog records antenna switch calls as "lp=on", "tx=off" etc. Calls fail
// with err once it is set.
type antennaLog struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (a *antennaLog) SetLowPower(lowPower bool) error {
	return a.record("lp", lowPower)
}

func (a *antennaLog) SetTx(txActive bool) error {
	return a.record("tx", txActive)
}

func (a *antennaLog) record(what string, on bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if on {
		a.calls = append(a.calls, what+"=on")
	} else {
		a.calls = append(a.calls, what+"=off")
	}
	return a.err
}

func (a *antennaLog) fail(err error) {
	a.mu.Lock()
	a.err = err
	a.mu.Unlock()
}

func (a *antennaLog) take() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	calls := a.calls
	a.calls = nil
	return calls
}

// newDevice creates a Device on chip without initializing it.
func newDevice(t *testing.T, chip *fakeChip, pins Pins, opts Options) *Device {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = t.Logf
	}
	d := New(chip, pins, opts)
	d.sleep = chip.sleep
	t.Cleanup(func() { d.Close() })
	return d
}

// initDevice creates and initializes a Device on chip.
func initDevice(t *testing.T, chip *fakeChip, opts Options) *Device {
	t.Helper()
	d := newDevice(t, chip, Pins{}, opts)
	if err := d.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return d
}

func nextEvent(t *testing.T, d *Device) Event {
	t.Helper()
	select {
	case ev := <-d.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for an event")
	}
	return nil
}

func noEvent(t *testing.T, d *Device) {
	t.Helper()
	select {
	case ev := <-d.Events():
		t.Fatalf("unexpected event %#v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func edgePin(name string) *gpiotest.Pin {
	return &gpiotest.Pin{N: name, EdgesChan: make(chan gpio.Level, 1)}
}

func (c *fakeChip) fifoAt(addr byte, n int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := make([]byte, n)
	for i := range b {
		b[i] = c.fifo[addr+byte(i)]
	}
	return b
}
