package sx1276

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// line identifies an interrupt queue entry: a DIO line of the radio or one of the
// software timeouts.
type line int

const (
	lineDio0 line = iota // RxDone, TxDone
	lineDio1             // RxTimeout
	lineDio2             // FhssChangeChannel
	lineDio3             // CadDone, CadDetected
	lineDio4
	lineDio5
	lineTxTimeout
	lineRxTimeout
)

type irq struct {
	line line
	gen  uint64 // timer generation, only for timeouts
}

// opTimer is a single-shot timeout for one operation. gen changes every time the
// timer is armed or canceled so an expiry that was already in flight when the
// operation finished can be recognized and dropped.
type opTimer struct {
	t   *time.Timer
	gen uint64
}

func (d *Device) armTimer(ot *opTimer, l line, timeout time.Duration) {
	d.cancelTimer(ot)
	if timeout <= 0 {
		return
	}
	it := irq{line: l, gen: ot.gen}
	ot.t = time.AfterFunc(timeout, func() { d.enqueueTimeout(it) })
}

func (d *Device) cancelTimer(ot *opTimer) {
	if ot.t != nil {
		ot.t.Stop()
		ot.t = nil
	}
	ot.gen++
}

// enqueueTimeout is called from the timer's goroutine. Unlike an edge it must not
// get lost, so it waits for room in the queue.
func (d *Device) enqueueTimeout(it irq) {
	select {
	case d.irq <- it:
	case <-d.stop:
	}
}

// isr is the edge handler for a DIO line: it only queues the line number.
func (d *Device) isr(l line) {
	select {
	case d.irq <- irq{line: l}:
	default:
		d.log("sx1276: interrupt queue full, dropping DIO%d", l)
	}
}

// watchLines arms rising edge detection on every connected DIO pin and starts a
// goroutine per pin converting WaitForEdge into isr calls. No goroutine is started
// unless all pins could be set up.
func (d *Device) watchLines() error {
	var pins []int
	for i, pin := range d.dio {
		if pin == nil || line(i) > lineDio5 {
			continue
		}
		if err := pin.In(gpio.PullDown, gpio.RisingEdge); err != nil {
			return fmt.Errorf("sx1276: error initializing DIO%d pin: %w", i, err)
		}
		pins = append(pins, i)
	}
	for _, i := range pins {
		d.wg.Add(1)
		go d.watch(d.dio[i], line(i))
	}
	return nil
}

func (d *Device) watch(pin gpio.PinIn, l line) {
	defer d.wg.Done()
	for {
		select {
		case <-d.stop:
			return
		default:
		}
		if pin.WaitForEdge(d.edgePoll) {
			d.isr(l)
		}
	}
}

// process is the single consumer of the interrupt queue. All register access
// caused by an interrupt or a timeout happens here.
func (d *Device) process() {
	defer d.wg.Done()
	for {
		select {
		case <-d.stop:
			return
		case it := <-d.irq:
			d.mu.Lock()
			d.handle(it)
			d.mu.Unlock()
		}
	}
}

// handle dispatches one queue entry. Callers hold d.mu.
func (d *Device) handle(it irq) {
	if d.err != nil {
		return
	}
	switch it.line {
	case lineDio0:
		d.onDio0()
	case lineDio1:
		d.onDio1()
	case lineDio2:
		d.onDio2()
	case lineDio3:
		d.onDio3()
	case lineTxTimeout:
		d.onTxTimeout(it.gen)
	case lineRxTimeout:
		d.onRxTimeout(it.gen)
	}
}

// onDio0 handles RxDone and TxDone.
func (d *Device) onDio0() {
	switch d.state {
	case StateRxRunning:
		if d.modem != ModemLoRa {
			return
		}
		d.writeReg(RegIrqFlags, IrqRxDoneMask)

		if d.readReg(RegIrqFlags)&IrqPayloadCrcErrorMask != 0 {
			d.writeReg(RegIrqFlags, IrqPayloadCrcErrorMask)
			d.rxFinished()
			d.emit(RxError{Reason: "CRC error", Err: ErrCRC})
			return
		}

		snr := decodeSNR(d.readReg(RegPktSnrValue))
		rssi := packetRSSI(d.channel, d.readReg(RegPktRssiValue), snr)
		size := d.readReg(RegRxNbBytes)
		d.rxFinished()

		buf, err := d.buffers.get()
		if err != nil {
			d.log("sx1276: dropping %d byte packet, all receive buffers in use", size)
			d.emit(RxError{Reason: "receive buffer exhausted", Err: err})
			return
		}

		// Read the FIFO starting from the last packet received.
		d.writeReg(RegFifoAddrPtr, d.readReg(RegFifoRxCurrentAddr))
		content := buf[:size]
		d.readBurst(RegFifo, content)
		if d.err != nil {
			d.buffers.put(buf)
			return
		}
		d.emit(RxDone{Packet: &RxPacket{
			SNR:     snr,
			RSSI:    rssi,
			Size:    size,
			Content: content,
			pool:    d.buffers,
			buf:     buf,
		}})

	case StateTxRunning:
		d.cancelTimer(&d.txTimer)
		d.writeReg(RegIrqFlags, IrqTxDoneMask)
		d.state = StateIdle
		d.emit(TxDone{})
	}
}

// rxFinished ends a reception unless the receiver runs continuously.
func (d *Device) rxFinished() {
	if !d.lora.RxContinuous {
		d.state = StateIdle
	}
	d.cancelTimer(&d.rxTimer)
}

// onDio1 handles the hardware RxTimeout.
func (d *Device) onDio1() {
	if d.state != StateRxRunning || d.modem != ModemLoRa {
		return
	}
	d.cancelTimer(&d.rxTimer)
	d.state = StateIdle
	d.emit(RxTimeout{})
}

// onDio2 handles FhssChangeChannel.
func (d *Device) onDio2() {
	if d.state != StateRxRunning && d.state != StateTxRunning {
		return
	}
	if d.modem != ModemLoRa || !d.lora.FreqHopOn {
		return
	}
	d.writeReg(RegIrqFlags, IrqFhssChangeChannelMask)
	ch := d.readReg(RegHopChannel) & hopChannelMask
	d.emit(FhssChangeChannel{Channel: uint32(ch)})
}

// onDio3 handles CadDone. The detected flag is sampled before it is cleared.
func (d *Device) onDio3() {
	if d.modem != ModemLoRa {
		return
	}
	flags := d.readReg(RegIrqFlags)
	d.writeReg(RegIrqFlags, IrqCadDetectedMask|IrqCadDoneMask)
	if d.state == StateCad {
		d.state = StateIdle
	}
	d.emit(CadDone{Detected: flags&IrqCadDetectedMask != 0})
}

func (d *Device) onTxTimeout(gen uint64) {
	if gen != d.txTimer.gen || d.state != StateTxRunning {
		return
	}
	d.setStandby()
	d.emit(TxTimeout{})
}

func (d *Device) onRxTimeout(gen uint64) {
	if gen != d.rxTimer.gen || d.state != StateRxRunning {
		return
	}
	d.cancelTimer(&d.rxTimer)
	d.state = StateIdle
	d.emit(RxTimeout{})
}
