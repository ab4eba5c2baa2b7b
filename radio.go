package sx1276

import "time"

// spuriousErratum holds the errata 2.3 settings (receiver spurious reception of a
// LoRa signal) indexed by chip bandwidth code: the RegTest2f value and the offset
// in Hz the receiver has to be tuned away from the channel.
var spuriousErratum = [bwChip500kHz]struct {
	test2f byte
	offset uint32
}{
	{0x48, 7810},  // 7.8 kHz
	{0x44, 10420}, // 10.4 kHz
	{0x44, 15620}, // 15.6 kHz
	{0x44, 20830}, // 20.8 kHz
	{0x44, 31250}, // 31.25 kHz
	{0x44, 41670}, // 41.7 kHz
	{0x40, 0},     // 62.5 kHz
	{0x40, 0},     // 125 kHz
	{0x40, 0},     // 250 kHz
}

// Send starts transmitting buf. Completion is reported with a TxDone or TxTimeout
// event. The radio is woken up first if it is asleep.
func (d *Device) Send(buf []byte) error {
	if len(buf) > MaxPktLength {
		return ErrPacketTooLarge
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}

	size := byte(len(buf))
	switch d.modem {
	case ModemFSK:
		d.writeReg(RegFifo, size)
		d.writeReg(RegFifo, buf...)
	case ModemLoRa:
		d.setInvertIQ(false)
		d.writeReg(RegPayloadLength, size)

		// Full buffer used for Tx.
		d.writeReg(RegFifoTxBaseAddr, fifoTxBase)
		d.writeReg(RegFifoAddrPtr, fifoTxBase)

		// FIFO operations can not take place in sleep mode.
		if d.opMode() == ModeSleep {
			d.setStandby()
			d.sleep(wakeupDelay)
		}
		d.writeReg(RegFifo, buf...)
	}

	d.writeReg(RegIrqFlagsMask, IrqAll&^IrqTxDoneMask)
	d.writeReg(RegDioMapping1, d.readReg(RegDioMapping1)&dio0Mask|dio0TxDone)

	d.cancelTimer(&d.rxTimer)
	d.armTimer(&d.txTimer, lineTxTimeout, d.lora.TxTimeout)
	d.state = StateTxRunning
	d.setOpMode(ModeTx)
	return d.err
}

// SetRx puts the radio in receive mode. A zero timeout waits forever, otherwise an
// RxTimeout event is emitted if nothing arrives in time. Whether the receiver stays
// on after a packet depends on RxConfig.Continuous.
func (d *Device) SetRx(timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}

	continuous := false
	if d.modem == ModemLoRa {
		d.setInvertIQ(true)

		// Errata 2.3, receiver spurious reception of a LoRa signal.
		if bw := d.lora.Bandwidth; bw < bwChip500kHz {
			d.writeReg(RegDetectionOptimize, d.readReg(RegDetectionOptimize)&detectOptimizeAutoIFOff)
			d.writeReg(RegTest30, 0x00)
			e := spuriousErratum[bw]
			d.writeReg(RegTest2f, e.test2f)
			if e.offset != 0 {
				d.tune(d.channel + e.offset)
			}
		} else {
			d.writeReg(RegDetectionOptimize, d.readReg(RegDetectionOptimize)|detectOptimizeAutoIFOn)
		}

		continuous = d.lora.RxContinuous

		if d.lora.FreqHopOn {
			d.writeReg(RegIrqFlagsMask, IrqValidHeaderMask|IrqTxDoneMask|IrqCadDoneMask|IrqCadDetectedMask)
			// DIO0=RxDone, DIO2=FhssChangeChannel
			d.writeReg(RegDioMapping1, d.readReg(RegDioMapping1)&dio0Mask&dio2Mask|dio0RxDone|dio2Fhss)
		} else {
			d.writeReg(RegIrqFlagsMask, IrqValidHeaderMask|IrqTxDoneMask|IrqCadDoneMask|
				IrqFhssChangeChannelMask|IrqCadDetectedMask)
			// DIO0=RxDone
			d.writeReg(RegDioMapping1, d.readReg(RegDioMapping1)&dio0Mask|dio0RxDone)
		}

		d.writeReg(RegFifoRxBaseAddr, fifoRxBase)
		d.writeReg(RegFifoAddrPtr, fifoRxBase)
	}

	d.state = StateRxRunning
	d.cancelTimer(&d.txTimer)
	d.armTimer(&d.rxTimer, lineRxTimeout, timeout)
	if continuous {
		d.setOpMode(ModeRxContinuous)
	} else {
		d.setOpMode(ModeRxSingle)
	}
	return d.err
}

// StartCAD starts channel activity detection, the result arrives as a CadDone
// event. It does nothing with the FSK modem.
func (d *Device) StartCAD() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	if d.modem != ModemLoRa {
		return nil
	}

	d.writeReg(RegIrqFlagsMask, IrqAll&^(IrqCadDoneMask|IrqCadDetectedMask))
	// DIO3=CadDone
	d.writeReg(RegDioMapping1, d.readReg(RegDioMapping1)&dio3Mask|dio3Cad)

	d.cancelTimer(&d.txTimer)
	d.cancelTimer(&d.rxTimer)
	d.state = StateCad
	d.setOpMode(ModeCad)
	return d.err
}

// SetSleep cancels any pending timeout and puts the radio to sleep.
func (d *Device) SetSleep() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return err
	}
	d.setSleep()
	return d.err
}

// SetStandby cancels any pending timeout and puts the radio in standby.
func (d *Device) SetStandby() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return err
	}
	d.setStandby()
	return d.err
}

func (d *Device) setSleep() {
	d.cancelTimer(&d.txTimer)
	d.cancelTimer(&d.rxTimer)
	d.setOpMode(ModeSleep)
	d.state = StateIdle
}

func (d *Device) setStandby() {
	d.cancelTimer(&d.txTimer)
	d.cancelTimer(&d.rxTimer)
	d.setOpMode(ModeStandby)
	d.state = StateIdle
}

// setInvertIQ programs the IQ inversion registers for receiving or transmitting.
func (d *Device) setInvertIQ(rx bool) {
	iq := d.readReg(RegInvertIQ) & invertIQTxMask & invertIQRxMask
	iq2 := invertIQ2Off
	switch {
	case !d.lora.IQInverted:
		iq |= invertIQRxOff | invertIQTxOff
	case rx:
		iq |= invertIQRxOn | invertIQTxOff
		iq2 = invertIQ2On
	default:
		iq |= invertIQRxOff | invertIQTxOn
		iq2 = invertIQ2On
	}
	d.writeReg(RegInvertIQ, iq)
	d.writeReg(RegInvertIQ2, iq2)
}

// ready is usable plus a check that Init has run, without which no event would
// ever be delivered.
func (d *Device) ready() error {
	if err := d.usable(); err != nil {
		return err
	}
	if !d.initialized {
		return ErrNotInitialized
	}
	return nil
}
