// Package sx1276 drives a Semtech SX1276 LoRa/FSK transceiver attached to an SPI bus.
//
// The driver is interrupt driven: each DIO line of the radio that is wired to a GPIO
// is watched for rising edges, and the edge handler does nothing but enqueue the line
// number. A single processing goroutine owns all register access that results from an
// interrupt, decodes what happened and delivers a typed Event on the channel returned
// by Events. Software timeouts for transmit and receive are routed through the same
// queue so at most one terminal event is produced per operation.
//
// Only the LoRa modem is implemented; the FSK code paths are stubs.
//
// Errors talking to the chip are treated as fatal: the first SPI error is recorded,
// every later register access becomes a no-op and each public method returns the
// recorded error. A fresh Device has to be created to recover.
package sx1276

import (
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// Modem selects the chip's modulation engine.
type Modem uint8

const (
	ModemFSK Modem = iota
	ModemLoRa
)

func (m Modem) String() string {
	if m == ModemLoRa {
		return "LoRa"
	}
	return "FSK"
}

// State is the driver's view of what the radio is busy with.
type State uint8

const (
	StateIdle State = iota
	StateRxRunning
	StateTxRunning
	StateCad
	StateSleep
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRxRunning:
		return "rx-running"
	case StateTxRunning:
		return "tx-running"
	case StateCad:
		return "cad"
	case StateSleep:
		return "sleep"
	}
	return "unknown"
}

// LoRaSettings is the LoRa configuration last applied with SetRxConfig or SetTxConfig.
type LoRaSettings struct {
	Bandwidth           uint8 // chip bandwidth code: 7=125kHz, 8=250kHz, 9=500kHz
	Datarate            uint8 // spreading factor, 6..12
	Coderate            uint8 // 1=4/5 .. 4=4/8
	PreambleLen         uint16
	ImplicitHeader      bool
	PayloadLen          uint8
	CRCOn               bool
	FreqHopOn           bool
	HopPeriod           uint8
	IQInverted          bool
	LowDatarateOptimize bool
	RxContinuous        bool
	TxTimeout           time.Duration
}

// LogPrintf is a function used by the driver to print logging info.
type LogPrintf func(format string, v ...interface{})

// Options contains options used when creating a Device. Zero values select defaults.
type Options struct {
	Channel          uint32        // initial channel in Hz, default 915MHz
	Logger           LogPrintf     // default: no logging
	Antenna          AntennaSwitch // board antenna switch, default: none
	EventQueueLen    int           // buffered events before dropping, default 10
	IRQQueueLen      int           // pending interrupt lines before dropping, default 10
	RxBuffers        int           // receive buffers that may be held by the consumer, default 4
	CalibrationPolls int           // image calibration polls before giving up, default 10000
	EdgePollInterval time.Duration // how often edge watchers check for Close, default 100ms
}

// Pins are the GPIOs the radio is wired to. DIO[i] is the pin connected to DIOi,
// entries may be nil for unconnected lines.
type Pins struct {
	Reset gpio.PinIO  // optional
	CS    gpio.PinOut // optional, only needed if the SPI driver doesn't drive CS
	DIO   []gpio.PinIn
}

const (
	defaultChannel          = 915e6
	defaultEventQueueLen    = 10
	defaultIRQQueueLen      = 10
	defaultRxBuffers        = 4
	defaultCalibrationPolls = 10000
	defaultEdgePollInterval = 100 * time.Millisecond
)

// Device represents a Semtech SX1276 radio.
type Device struct {
	bus      *Transport
	port     spi.PortCloser // set by Open
	reset    gpio.PinIO
	dio      []gpio.PinIn
	antenna  AntennaSwitch
	log      LogPrintf
	sleep    func(time.Duration)
	calPolls int
	edgePoll time.Duration

	// mu serializes register sequences and guards the state below. The processing
	// goroutine holds it while handling one queue entry.
	mu          sync.Mutex
	err         error // persistent error
	modem       Modem
	state       State
	channel     uint32
	lora        LoRaSettings
	prevOpMode  byte // RegOpMode as last seen by setOpMode
	txTimer     opTimer
	rxTimer     opTimer
	initialized bool
	closed      bool

	irq     chan irq
	events  chan Event
	buffers *bufferPool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New creates a Device for the radio on conn. It performs no I/O, call Init before use.
func New(conn spi.Conn, pins Pins, opts Options) *Device {
	d := &Device{
		bus:      NewTransport(conn, pins.CS),
		reset:    pins.Reset,
		dio:      pins.DIO,
		antenna:  opts.Antenna,
		log:      opts.Logger,
		sleep:    time.Sleep,
		calPolls: opts.CalibrationPolls,
		edgePoll: opts.EdgePollInterval,
		channel:  opts.Channel,
		modem:    ModemLoRa,
		state:    StateIdle,
		stop:     make(chan struct{}),
		lora: LoRaSettings{
			Bandwidth:   bwChip125kHz,
			Datarate:    7,
			Coderate:    1,
			PreambleLen: 8,
			CRCOn:       true,
		},
	}
	if d.antenna == nil {
		d.antenna = nopAntenna{}
	}
	if d.log == nil {
		d.log = func(format string, v ...interface{}) {}
	}
	if d.calPolls <= 0 {
		d.calPolls = defaultCalibrationPolls
	}
	if d.edgePoll <= 0 {
		d.edgePoll = defaultEdgePollInterval
	}
	if d.channel == 0 {
		d.channel = defaultChannel
	}
	n := opts.IRQQueueLen
	if n <= 0 {
		n = defaultIRQQueueLen
	}
	d.irq = make(chan irq, n)
	n = opts.EventQueueLen
	if n <= 0 {
		n = defaultEventQueueLen
	}
	d.events = make(chan Event, n)
	n = opts.RxBuffers
	if n <= 0 {
		n = defaultRxBuffers
	}
	d.buffers = newBufferPool(n, MaxPktLength)
	return d
}

// Init resets the chip, runs the image calibration and selects the LoRa modem on
// the configured channel. Then it hooks up the DIO lines and starts the processing
// goroutine. The radio is left asleep. A failed Init may be retried.
func (d *Device) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.initialized {
		return nil
	}

	if err := d.resetChip(); err != nil {
		return err
	}
	if err := d.rxChainCalibration(); err != nil {
		return err
	}

	// Datasheet default, the value after POR is 0x09.
	d.writeReg(RegOpMode, 0x00)
	d.setModem(ModemLoRa)
	d.setChannel(d.channel)
	d.state = StateSleep
	if d.err != nil {
		return d.err
	}
	if err := d.watchLines(); err != nil {
		return err
	}

	d.wg.Add(1)
	go d.process()
	d.initialized = true
	return nil
}

// Close stops the processing goroutine and the edge watchers, cancels pending
// timeouts, puts the radio to sleep and closes the Events channel.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.cancelTimer(&d.txTimer)
	d.cancelTimer(&d.rxTimer)
	if d.initialized {
		d.setOpMode(ModeSleep)
		d.state = StateIdle
	}
	err := d.err
	close(d.stop)
	d.mu.Unlock()

	d.wg.Wait()
	close(d.events)
	if d.port != nil {
		if perr := d.port.Close(); err == nil {
			err = perr
		}
	}
	return err
}

// Err returns any persistent error that may have been encountered.
func (d *Device) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Status returns the current state of the radio.
func (d *Device) Status() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Modem returns the currently selected modem.
func (d *Device) Modem() Modem {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.modem
}

// Channel returns the current channel in Hz.
func (d *Device) Channel() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.channel
}

// Settings returns a copy of the LoRa settings.
func (d *Device) Settings() LoRaSettings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lora
}

// usable reports why the device can't be used, if it can't. Callers hold d.mu.
func (d *Device) usable() error {
	if d.closed {
		return ErrClosed
	}
	return d.err
}

// resetChip pulses NRESET low for 1ms, releases it to high impedance and waits for
// the chip to come up.
func (d *Device) resetChip() error {
	if d.reset == nil {
		return nil
	}
	if err := d.reset.Out(gpio.Low); err != nil {
		return err
	}
	d.sleep(time.Millisecond)
	if err := d.reset.In(gpio.Float, gpio.NoEdge); err != nil {
		return err
	}
	d.sleep(10 * time.Millisecond)
	return nil
}

// writeReg writes one or multiple registers starting at reg.
func (d *Device) writeReg(reg Register, data ...byte) {
	if d.err != nil {
		return
	}
	if err := d.bus.WriteBurst(reg, data); err != nil {
		d.fail(err)
	}
}

// readReg reads one register and returns its value.
func (d *Device) readReg(reg Register) byte {
	if d.err != nil {
		return 0
	}
	v, err := d.bus.Read(reg)
	if err != nil {
		d.fail(err)
	}
	return v
}

func (d *Device) readBurst(reg Register, buf []byte) {
	if d.err != nil {
		return
	}
	if err := d.bus.ReadBurst(reg, buf); err != nil {
		d.fail(err)
	}
}

func (d *Device) fail(err error) {
	d.err = err
	d.log("%s", err)
}
