package sx1276

import "errors"

var (
	ErrInvalidBandwidth   = errors.New("sx1276: only 125, 250 and 500 kHz LoRa bandwidths are supported")
	ErrNoRxBuffer         = errors.New("sx1276: no receive buffer available")
	ErrCRC                = errors.New("sx1276: crc error")
	ErrCalibrationTimeout = errors.New("sx1276: image calibration did not complete")
	ErrVersionMismatch    = errors.New("sx1276: version not matched")
	ErrPacketTooLarge     = errors.New("sx1276: packet too large")
	ErrClosed             = errors.New("sx1276: device closed")
	ErrNotInitialized     = errors.New("sx1276: device not initialized")
	ErrMissingPin         = errors.New("sx1276: missing pin")
)
