package sx1276

import (
	"fmt"
	"math"
	"time"
)

var loraBandwidthHz = [...]float64{125e3, 250e3, 500e3}

// TimeOnAir computes how long a packet of pktLen bytes occupies the channel with
// the current settings. Only the LoRa modem is supported, FSK yields 0.
func (d *Device) TimeOnAir(m Modem, pktLen uint8) time.Duration {
	if m != ModemLoRa {
		return 0
	}
	d.mu.Lock()
	s := d.lora
	d.mu.Unlock()
	return time.Duration(timeOnAir(s, pktLen)) * time.Microsecond
}

// timeOnAir returns the LoRa airtime in microseconds, rounded up.
func timeOnAir(s LoRaSettings, pktLen uint8) uint32 {
	bw := loraBandwidthHz[0]
	if i := int(s.Bandwidth) - bwChip125kHz; i >= 0 && i < len(loraBandwidthHz) {
		bw = loraBandwidthHz[i]
	}
	dr := int(s.Datarate)

	rs := bw / float64(int(1)<<uint(dr)) // symbol rate
	ts := 1 / rs                         // symbol time

	tPreamble := (float64(s.PreambleLen) + 4.25) * ts

	num := 8*int(pktLen) - 4*dr + 28 + 16*int(b2u8(s.CRCOn))
	if !s.ImplicitHeader {
		num -= 20
	}
	den := dr
	if s.LowDatarateOptimize {
		den -= 2
	}
	den *= 4
	tmp := math.Ceil(float64(num)/float64(den)) * float64(int(s.Coderate)+4)
	nPayload := 8 + math.Max(tmp, 0)
	tPayload := float64(nPayload * ts)

	tOnAir := float64(tPreamble + tPayload)
	return uint32(math.Floor(float64(tOnAir*1e6) + 0.999))
}

// decodeSNR converts RegPktSnrValue, a two's complement count of quarter dB, to dB.
func decodeSNR(raw byte) int8 {
	if raw&0x80 != 0 {
		return -int8(((^raw + 1) & 0xff) >> 2)
	}
	return int8(raw >> 2)
}

// rssiOffset is the band dependent offset the RSSI registers are relative to.
func rssiOffset(channel uint32) int16 {
	if channel >= RfMidBandThreshold {
		return RssiOffsetHfPort
	}
	return RssiOffsetLfPort
}

// packetRSSI converts RegPktRssiValue to dBm, correcting for packets received
// below the noise floor.
func packetRSSI(channel uint32, raw byte, snr int8) int16 {
	rssi := rssiOffset(channel) + int16(raw) + int16(raw>>4)
	if snr < 0 {
		rssi += int16(snr)
	}
	return rssi
}

// ReadRssi returns the current RSSI in dBm.
func (d *Device) ReadRssi() (int16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return 0, err
	}
	rssi := d.readRssi()
	return rssi, d.err
}

func (d *Device) readRssi() int16 {
	if d.modem == ModemFSK {
		return -int16(d.readReg(RegFskRssiValue) >> 1)
	}
	return rssiOffset(d.channel) + int16(d.readReg(RegRssiValue))
}

// IsChannelFree tunes to freq, listens for a millisecond and reports whether the
// RSSI stayed at or below threshold. The radio is put to sleep afterwards.
func (d *Device) IsChannelFree(freq uint32, threshold int16) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return false, err
	}

	d.setChannel(freq)
	d.setOpMode(ModeRxContinuous)
	d.sleep(time.Millisecond)
	rssi := d.readRssi()
	d.setSleep()
	if d.err != nil {
		return false, d.err
	}
	return rssi <= threshold, nil
}

// Random generates a 32 bit random value from the wideband RSSI noise. Any ongoing
// operation is aborted and the radio is left asleep in LoRa mode.
func (d *Device) Random() (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return 0, err
	}

	d.setModem(ModemLoRa)
	d.writeReg(RegIrqFlagsMask, IrqAll)
	d.setOpMode(ModeStandby)
	d.writeReg(RegModemConfig1, randomModemConfig1)
	d.writeReg(RegModemConfig2, randomModemConfig2)
	d.setOpMode(ModeRxContinuous)

	var rnd uint32
	for i := uint(0); i < 32; i++ {
		d.sleep(time.Millisecond)
		// Unfiltered RSSI, only the LSB is noise.
		rnd |= uint32(d.readReg(RegRssiWideBand)&0x01) << i
	}

	d.setSleep()
	return rnd, d.err
}

// ReadTemperature returns the die temperature in °C. The sensor is uncalibrated,
// readings are only good for relative measurements.
func (d *Device) ReadTemperature() (int8, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return 0, err
	}

	// The sensor registers are on the FSK page. LongRangeMode can only be
	// changed in sleep.
	prev := d.opMode()
	longRange := d.readReg(RegOpMode) & byte(ModeLongRange)
	if longRange != 0 {
		d.setOpMode(ModeSleep)
		d.writeReg(RegOpMode, d.readReg(RegOpMode)&longRangeModeMask)
	}

	d.writeReg(RegImageCal, d.readReg(RegImageCal)&tempMonitorMask|tempMonitorOn)
	d.setOpMode(ModeSynthRx)
	d.sleep(time.Millisecond)
	d.writeReg(RegImageCal, d.readReg(RegImageCal)&tempMonitorMask|tempMonitorOff)

	// Sign and magnitude, not two's complement.
	raw := d.readReg(RegTemp)
	temp := int8(raw & 0x7f)
	if raw&0x80 != 0 {
		temp = -temp
	}

	if longRange != 0 {
		d.setOpMode(ModeSleep)
		d.writeReg(RegOpMode, d.readReg(RegOpMode)|longRange)
	}
	d.setOpMode(prev)
	return temp, d.err
}

// Version returns the contents of the silicon revision register.
func (d *Device) Version() (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return 0, err
	}
	v := d.readReg(RegVersion)
	return v, d.err
}

// Test checks that an SX1276 is answering on the bus. An SX1272 (version 0x1c) is
// rejected even though its registers are largely compatible.
func (d *Device) Test() (bool, error) {
	v, err := d.Version()
	if err != nil {
		return false, err
	}
	switch v {
	case VersionSX1276:
		return true, nil
	case versionSX1272:
		d.log("sx1276: test failed, found an SX1272")
	default:
		d.log("sx1276: test failed, invalid version number: %#02x", v)
	}
	return false, nil
}

// DumpRegisters logs almost all registers as a hex table.
func (d *Device) DumpRegisters() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return err
	}

	var regs [0x50]byte
	d.readBurst(RegOpMode, regs[1:])
	if d.err != nil {
		return d.err
	}
	d.log("     0  1  2  3  4  5  6  7  8  9  A  B  C  D  E  F")
	for i := 0; i < len(regs); i += 16 {
		line := fmt.Sprintf("%02x:", i)
		for j := 0; j < 16 && i+j < len(regs); j++ {
			line += fmt.Sprintf(" %02x", regs[i+j])
		}
		d.log("%s", line)
	}
	return nil
}
