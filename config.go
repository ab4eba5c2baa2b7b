package sx1276

import (
	"fmt"
	"math"
	"time"
)

// Bandwidth codes accepted by SetRxConfig and SetTxConfig for the LoRa modem.
const (
	BW125kHz uint8 = 0
	BW250kHz uint8 = 1
	BW500kHz uint8 = 2

	bwCodeOffset = 7 // BW125kHz+bwCodeOffset is the chip's 125kHz code
	bwChip125kHz = 7
	bwChip250kHz = 8
	bwChip500kHz = 9
)

// RxConfig holds the receive parameters. For LoRa, Datarate is the spreading factor
// and Coderate is 1 (4/5) through 4 (4/8).
type RxConfig struct {
	Modem          Modem
	Bandwidth      uint8 // BW125kHz, BW250kHz or BW500kHz
	Datarate       uint8
	Coderate       uint8
	BandwidthAFC   uint32 // FSK only
	PreambleLen    uint16
	SymbolTimeout  uint16 // RxSingle timeout in symbols, 10 bits
	ImplicitHeader bool
	PayloadLen     uint8 // payload length in implicit header mode
	CRCOn          bool
	FreqHopOn      bool
	HopPeriod      uint8 // symbols between hops
	IQInverted     bool
	Continuous     bool
}

// TxConfig holds the transmit parameters. Power is in dBm, Timeout is how long a
// transmission may take before a TxTimeout event is emitted (zero disables it).
type TxConfig struct {
	Modem          Modem
	Power          int8
	Fdev           uint32 // FSK only
	Bandwidth      uint8
	Datarate       uint8
	Coderate       uint8
	PreambleLen    uint16
	ImplicitHeader bool
	CRCOn          bool
	FreqHopOn      bool
	HopPeriod      uint8
	IQInverted     bool
	Timeout        time.Duration
}

// SetModem switches between the LoRa and FSK modems. The chip has to be asleep for
// that, so the radio ends up in sleep mode.
func (d *Device) SetModem(m Modem) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return err
	}
	d.setModem(m)
	return d.err
}

func (d *Device) setModem(m Modem) {
	d.modem = m
	d.setOpMode(ModeSleep)
	op := d.readReg(RegOpMode) & longRangeModeMask
	if m == ModemLoRa {
		op |= byte(ModeLongRange)
	}
	d.writeReg(RegOpMode, op)
	d.writeReg(RegDioMapping1, 0x00)
	if m == ModemLoRa {
		d.writeReg(RegDioMapping2, dio5Clkout)
	}
}

// SetChannel tunes the radio to freq Hz, leaving the operating mode as it was.
func (d *Device) SetChannel(freq uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return err
	}
	d.setChannel(freq)
	return d.err
}

func (d *Device) setChannel(freq uint32) {
	d.channel = freq
	d.tune(freq)
}

// tune programs the synthesizer without changing the current channel, which is
// what calibration and the spurious reception erratum need.
func (d *Device) tune(freq uint32) {
	prev := Mode(d.readReg(RegOpMode) &^ opModeMask)
	d.setOpMode(ModeStandby)
	frf := frfFromHz(freq)
	d.writeReg(RegFrfMsb, byte(frf>>16), byte(frf>>8), byte(frf))
	d.setOpMode(prev)
}

func frfFromHz(freq uint32) uint32 {
	return uint32(math.Round(float64(freq) / FreqStep))
}

func hzFromFrf(frf uint32) uint32 {
	return uint32(float64(frf) * FreqStep)
}

// PaSelect returns the power amplifier output to use on channel: PA_BOOST below
// the mid-band threshold, RFO at or above it.
func PaSelect(channel uint32) PAConfig {
	if channel < RfMidBandThreshold {
		return PABoost
	}
	return PARFO
}

// lowDatarateOptimize reports whether symbols are long enough (over 16ms) to
// require the low data rate optimization. bw is the chip bandwidth code.
func lowDatarateOptimize(bw, datarate uint8) bool {
	return (bw == bwChip125kHz && (datarate == 11 || datarate == 12)) ||
		(bw == bwChip250kHz && datarate == 12)
}

func clampDatarate(datarate uint8) uint8 {
	switch {
	case datarate < 6:
		return 6
	case datarate > 12:
		return 12
	}
	return datarate
}

// paFields computes RegPaConfig and RegPaDac for the requested output power.
//
// The datasheet is confusing about how PaConfig gets set and the formula for
// OutputPower. With PA_BOOST above 17dBm the +20dBm DAC is enabled and the output
// field holds power-5, otherwise power-2; RFO holds power+1.
func paFields(sel PAConfig, power int8, paConfig, paDac byte) (byte, byte) {
	paConfig = paConfig&paSelectMask | byte(sel)
	paConfig = paConfig&paMaxPowerMask | 0x05<<4

	var out int8
	if sel == PABoost {
		if power > 17 {
			paDac = paDac&paDac20dBmMask | paDac20dBmOn
		} else {
			paDac = paDac&paDac20dBmMask | paDac20dBmOff
		}
		if paDac&paDac20dBmOn == paDac20dBmOn {
			out = clampPower(power, 5, 20) - 5
		} else {
			out = clampPower(power, 2, 17) - 2
		}
	} else {
		out = clampPower(power, -1, 14) + 1
	}
	paConfig = paConfig&paOutputMask | byte(out)&0x0f
	return paConfig, paDac
}

func clampPower(p, min, max int8) int8 {
	switch {
	case p < min:
		return min
	case p > max:
		return max
	}
	return p
}

// loraModem is what SetRxConfig and SetTxConfig have in common.
type loraModem struct {
	bandwidth      uint8
	datarate       uint8
	coderate       uint8
	preambleLen    uint16
	implicitHeader bool
	crcOn          bool
	freqHopOn      bool
	hopPeriod      uint8
	iqInverted     bool
}

func (d *Device) checkBandwidth(bw uint8) error {
	if bw > BW500kHz {
		return fmt.Errorf("%w: code %d", ErrInvalidBandwidth, bw)
	}
	return nil
}

// applyLoRa stores the shared LoRa settings and writes the modem configuration.
// symbTimeout is nil when transmitting.
func (d *Device) applyLoRa(m loraModem, symbTimeout *uint16) {
	bw := m.bandwidth + bwCodeOffset
	datarate := clampDatarate(m.datarate)
	ldro := lowDatarateOptimize(bw, datarate)

	d.lora.Bandwidth = bw
	d.lora.Datarate = datarate
	d.lora.Coderate = m.coderate
	d.lora.PreambleLen = m.preambleLen
	d.lora.ImplicitHeader = m.implicitHeader
	d.lora.CRCOn = m.crcOn
	d.lora.FreqHopOn = m.freqHopOn
	d.lora.HopPeriod = m.hopPeriod
	d.lora.IQInverted = m.iqInverted
	d.lora.LowDatarateOptimize = ldro

	mc1 := d.readReg(RegModemConfig1) & mc1BandwidthMask & mc1CodingRateMask & mc1ImplicitHeaderMask
	d.writeReg(RegModemConfig1, mc1|bw<<4|(m.coderate&0x07)<<1|b2u8(m.implicitHeader))

	mc2 := d.readReg(RegModemConfig2) & mc2SpreadingMask & mc2RxCrcMask
	if symbTimeout != nil {
		mc2 = mc2&mc2SymbTimeoutMask | byte(*symbTimeout>>8)&^mc2SymbTimeoutMask
	}
	d.writeReg(RegModemConfig2, mc2|datarate<<4|b2u8(m.crcOn)<<2)

	mc3 := d.readReg(RegModemConfig3) & mc3LowDatarateMask
	d.writeReg(RegModemConfig3, mc3|b2u8(ldro)<<3)

	if symbTimeout != nil {
		d.writeReg(RegSymbTimeoutLsb, byte(*symbTimeout))
	}
	d.writeReg(RegPreambleMsb, byte(m.preambleLen>>8), byte(m.preambleLen))

	if m.freqHopOn {
		d.writeReg(RegPllHop, d.readReg(RegPllHop)&pllFastHopMask|pllFastHopOn)
		d.writeReg(RegHopPeriod, m.hopPeriod)
	}

	// Errata 2.1, sensitivity optimization with a 500kHz bandwidth.
	switch {
	case bw == bwChip500kHz && d.channel >= RfMidBandThreshold:
		d.writeReg(RegTest36, 0x02)
		d.writeReg(RegTest3a, 0x64)
	case bw == bwChip500kHz:
		d.writeReg(RegTest36, 0x02)
		d.writeReg(RegTest3a, 0x7f)
	default:
		d.writeReg(RegTest36, 0x03)
	}

	if datarate == 6 {
		d.writeReg(RegDetectionOptimize, d.readReg(RegDetectionOptimize)&detectOptimizeMask|detectOptimizeSF6)
		d.writeReg(RegDetectionThreshold, detectThresholdSF6)
	} else {
		d.writeReg(RegDetectionOptimize, detectOptimizeSF7to12)
		d.writeReg(RegDetectionThreshold, detectThresholdSF7to12)
	}
}

// SetRxConfig configures the receiver. Only bandwidth codes 0..2 (125, 250 and
// 500kHz) are valid for LoRa, anything else returns ErrInvalidBandwidth before any
// register is touched. The spreading factor is clamped to 6..12.
func (d *Device) SetRxConfig(cfg RxConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return err
	}
	if cfg.Modem == ModemLoRa {
		if err := d.checkBandwidth(cfg.Bandwidth); err != nil {
			return err
		}
	}

	d.setModem(cfg.Modem)
	if cfg.Modem != ModemLoRa {
		return d.err
	}

	d.lora.PayloadLen = cfg.PayloadLen
	d.lora.RxContinuous = cfg.Continuous
	symb := cfg.SymbolTimeout
	d.applyLoRa(loraModem{
		bandwidth:      cfg.Bandwidth,
		datarate:       cfg.Datarate,
		coderate:       cfg.Coderate,
		preambleLen:    cfg.PreambleLen,
		implicitHeader: cfg.ImplicitHeader,
		crcOn:          cfg.CRCOn,
		freqHopOn:      cfg.FreqHopOn,
		hopPeriod:      cfg.HopPeriod,
		iqInverted:     cfg.IQInverted,
	}, &symb)
	if cfg.ImplicitHeader {
		d.writeReg(RegPayloadLength, cfg.PayloadLen)
	}
	return d.err
}

// SetTxConfig configures the transmitter, including the power amplifier for the
// current channel (see PaSelect). Bandwidth and spreading factor are validated
// and clamped as for SetRxConfig.
func (d *Device) SetTxConfig(cfg TxConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return err
	}
	if cfg.Modem == ModemLoRa {
		if err := d.checkBandwidth(cfg.Bandwidth); err != nil {
			return err
		}
	}

	d.setModem(cfg.Modem)

	paConfig, paDac := paFields(PaSelect(d.channel), cfg.Power, d.readReg(RegPaConfig), d.readReg(RegPaDac))
	d.writeReg(RegPaRamp, paRamp50us)
	d.writeReg(RegPaConfig, paConfig)
	d.writeReg(RegPaDac, paDac)

	if cfg.Modem != ModemLoRa {
		return d.err
	}

	d.lora.TxTimeout = cfg.Timeout
	d.applyLoRa(loraModem{
		bandwidth:      cfg.Bandwidth,
		datarate:       cfg.Datarate,
		coderate:       cfg.Coderate,
		preambleLen:    cfg.PreambleLen,
		implicitHeader: cfg.ImplicitHeader,
		crcOn:          cfg.CRCOn,
		freqHopOn:      cfg.FreqHopOn,
		hopPeriod:      cfg.HopPeriod,
		iqInverted:     cfg.IQInverted,
	}, nil)
	return d.err
}

// SetMaxPayloadLen sets the largest payload the LoRa receiver accepts.
func (d *Device) SetMaxPayloadLen(m Modem, max uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return err
	}
	d.setModem(m)
	if m == ModemLoRa {
		d.writeReg(RegPayloadMaxLength, max)
	}
	return d.err
}

// SetSyncWord sets the LoRa sync word, 0x12 for private and 0x34 for public networks.
func (d *Device) SetSyncWord(sw byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return err
	}
	d.writeReg(RegSyncWord, sw)
	return d.err
}

// SetLnaBoost turns the high frequency LNA boost on or off.
func (d *Device) SetLnaBoost(boost bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return err
	}
	lna := d.readReg(RegLna)
	if boost {
		d.writeReg(RegLna, lna|0x03)
	} else {
		d.writeReg(RegLna, lna&0xfc)
	}
	return d.err
}

func b2u8(b bool) byte {
	if b {
		return 1
	}
	return 0
}
