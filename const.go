package sx1276

type Mode byte
type Register byte
type PAConfig byte

// Registers shared by both modems, and the LoRa page. Where the FSK page uses the
// same address for a different register both names are listed.
const (
	RegFifo               Register = 0x00
	RegOpMode             Register = 0x01
	RegFrfMsb             Register = 0x06
	RegFrfMid             Register = 0x07
	RegFrfLsb             Register = 0x08
	RegPaConfig           Register = 0x09
	RegPaRamp             Register = 0x0a
	RegOcp                Register = 0x0b
	RegLna                Register = 0x0c
	RegFifoAddrPtr        Register = 0x0d
	RegFifoTxBaseAddr     Register = 0x0e
	RegFifoRxBaseAddr     Register = 0x0f
	RegFifoRxCurrentAddr  Register = 0x10
	RegIrqFlagsMask       Register = 0x11
	RegIrqFlags           Register = 0x12
	RegRxNbBytes          Register = 0x13
	RegModemStat          Register = 0x18
	RegPktSnrValue        Register = 0x19
	RegPktRssiValue       Register = 0x1a
	RegRssiValue          Register = 0x1b
	RegHopChannel         Register = 0x1c
	RegModemConfig1       Register = 0x1d
	RegModemConfig2       Register = 0x1e
	RegSymbTimeoutLsb     Register = 0x1f
	RegPreambleMsb        Register = 0x20
	RegPreambleLsb        Register = 0x21
	RegPayloadLength      Register = 0x22
	RegPayloadMaxLength   Register = 0x23
	RegHopPeriod          Register = 0x24
	RegFifoRxByteAddr     Register = 0x25
	RegModemConfig3       Register = 0x26
	RegFreqErrorMsb       Register = 0x28
	RegFreqErrorMid       Register = 0x29
	RegFreqErrorLsb       Register = 0x2a
	RegRssiWideBand       Register = 0x2c
	RegTest2f             Register = 0x2f
	RegTest30             Register = 0x30
	RegDetectionOptimize  Register = 0x31
	RegInvertIQ           Register = 0x33
	RegTest36             Register = 0x36
	RegDetectionThreshold Register = 0x37
	RegSyncWord           Register = 0x39
	RegTest3a             Register = 0x3a
	RegInvertIQ2          Register = 0x3b
	RegDioMapping1        Register = 0x40
	RegDioMapping2        Register = 0x41
	RegVersion            Register = 0x42
	RegPllHop             Register = 0x44
	RegPaDac              Register = 0x4d

	// FSK page
	RegFskRssiValue Register = 0x11
	RegImageCal     Register = 0x3b
	RegTemp         Register = 0x3c
)

// Operating modes, the low three bits of RegOpMode.
const (
	ModeLongRange    Mode = 0x80
	ModeSleep        Mode = 0x00
	ModeStandby      Mode = 0x01
	ModeSynthTx      Mode = 0x02
	ModeTx           Mode = 0x03
	ModeSynthRx      Mode = 0x04
	ModeRxContinuous Mode = 0x05
	ModeRxSingle     Mode = 0x06
	ModeCad          Mode = 0x07

	opModeMask        byte = 0xf8
	longRangeModeMask byte = 0x7f
)

const (
	PABoost PAConfig = 0x80
	PARFO   PAConfig = 0x00

	paSelectMask   byte = 0x7f
	paMaxPowerMask byte = 0x8f
	paOutputMask   byte = 0xf0
	paDac20dBmMask byte = 0xf8
	paDac20dBmOn   byte = 0x07
	paDac20dBmOff  byte = 0x04
	paRamp50us     byte = 0x09
)

// LoRa IRQ flags, same bit positions in RegIrqFlags and RegIrqFlagsMask.
const (
	IrqRxTimeoutMask         byte = 0x80
	IrqRxDoneMask            byte = 0x40
	IrqPayloadCrcErrorMask   byte = 0x20
	IrqValidHeaderMask       byte = 0x10
	IrqTxDoneMask            byte = 0x08
	IrqCadDoneMask           byte = 0x04
	IrqFhssChangeChannelMask byte = 0x02
	IrqCadDetectedMask       byte = 0x01
	IrqAll                   byte = 0xff
)

// DIO mapping fields in RegDioMapping1.
const (
	dio0Mask   byte = 0x3f
	dio0RxDone byte = 0x00
	dio0TxDone byte = 0x40
	dio2Mask   byte = 0xf3
	dio2Fhss   byte = 0x00
	dio3Mask   byte = 0xfc
	dio3Cad    byte = 0x00
	dio5Clkout byte = 0x10
)

const (
	mc1BandwidthMask      byte = 0x0f
	mc1CodingRateMask     byte = 0xf1
	mc1ImplicitHeaderMask byte = 0xfe
	mc2SpreadingMask      byte = 0x0f
	mc2RxCrcMask          byte = 0xfb
	mc2SymbTimeoutMask    byte = 0xfc
	mc3LowDatarateMask    byte = 0xf7
	mc3AgcAuto            byte = 0x04

	pllFastHopMask byte = 0x7f
	pllFastHopOn   byte = 0x80

	hopChannelMask byte = 0x3f

	detectOptimizeMask      byte = 0xf8
	detectOptimizeSF6       byte = 0x05
	detectOptimizeSF7to12   byte = 0x03
	detectThresholdSF6      byte = 0x0c
	detectThresholdSF7to12  byte = 0x0a
	detectOptimizeAutoIFOff byte = 0x7f
	detectOptimizeAutoIFOn  byte = 0x80

	invertIQTxMask byte = 0xfe
	invertIQRxMask byte = 0xbf
	invertIQRxOn   byte = 0x40
	invertIQRxOff  byte = 0x00
	invertIQTxOn   byte = 0x00
	invertIQTxOff  byte = 0x01
	invertIQ2On    byte = 0x19
	invertIQ2Off   byte = 0x1d

	imageCalMask    byte = 0xbf
	imageCalStart   byte = 0x40
	imageCalRunning byte = 0x20
	tempMonitorMask byte = 0xfe
	tempMonitorOn   byte = 0x00
	tempMonitorOff  byte = 0x01

	randomModemConfig1 byte = 0x0a
	randomModemConfig2 byte = 0x70
)

const (
	// FreqStep is the synthesizer resolution, 32 MHz / 2^19.
	FreqStep float64 = 61.03515625

	RfMidBandThreshold uint32 = 525e6
	RssiOffsetHfPort   int16  = -157
	RssiOffsetLfPort   int16  = -164
	MaxPktLength       int    = 255

	// ChannelHF is the frequency used for the high band image calibration.
	ChannelHF uint32 = 868e6

	VersionSX1276 byte = 0x12
	versionSX1272 byte = 0x1c

	fifoTxBase byte = 0x80
	fifoRxBase byte = 0x00
)
