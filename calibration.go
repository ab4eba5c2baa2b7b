package sx1276

import "fmt"

// rxChainCalibration runs the image calibration for the LF and HF bands. It must be
// called right after reset so all registers still hold their defaults. The power
// amplifier is cut while calibrating and the initial frequency and PA settings
// are restored afterwards, also when the calibration fails.
func (d *Device) rxChainCalibration() error {
	paConfig := d.readReg(RegPaConfig)
	var frf [3]byte
	d.readBurst(RegFrfMsb, frf[:])
	initial := hzFromFrf(uint32(frf[0])<<16 | uint32(frf[1])<<8 | uint32(frf[2]))

	// Cut the PA just in case, RFO output, power = -1 dBm.
	d.writeReg(RegPaConfig, 0x00)
	err := d.calibrateBands()
	d.writeReg(RegPaConfig, paConfig)
	d.tune(initial)
	if err != nil {
		return err
	}
	d.log("sx1276: image calibration done, restored %dHz", initial)
	return d.err
}

func (d *Device) calibrateBands() error {
	if err := d.imageCalibrate(); err != nil {
		return fmt.Errorf("%w (LF band)", err)
	}
	d.tune(ChannelHF)
	if err := d.imageCalibrate(); err != nil {
		return fmt.Errorf("%w (HF band)", err)
	}
	return nil
}

// imageCalibrate starts one image calibration and polls until the chip clears its
// running flag, giving up after d.calPolls reads.
func (d *Device) imageCalibrate() error {
	d.writeReg(RegImageCal, d.readReg(RegImageCal)&imageCalMask|imageCalStart)
	for i := 0; i < d.calPolls; i++ {
		if d.readReg(RegImageCal)&imageCalRunning == 0 {
			return d.err
		}
		if d.err != nil {
			return d.err
		}
	}
	return ErrCalibrationTimeout
}
