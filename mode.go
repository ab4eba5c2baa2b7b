package sx1276

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

const (
	modeSettleDelay = 5 * time.Millisecond
	wakeupDelay     = time.Millisecond
)

// AntennaSwitch is implemented by the board to steer the RF switch. It is invoked
// on every operating mode change, before the new mode is written to the chip.
// An error is treated like a bus error: the mode isn't changed and the device
// becomes unusable.
type AntennaSwitch interface {
	SetLowPower(lowPower bool) error
	SetTx(txActive bool) error
}

type nopAntenna struct{}

func (nopAntenna) SetLowPower(bool) error { return nil }
func (nopAntenna) SetTx(bool) error       { return nil }

// GPIOAntennaSwitch drives an RF switch through two GPIO outputs. Either pin may
// be nil if the board doesn't have it.
type GPIOAntennaSwitch struct {
	LowPower gpio.PinOut // high while the radio sleeps
	Tx       gpio.PinOut // high while transmitting, low for receive
}

func (g *GPIOAntennaSwitch) SetLowPower(lowPower bool) error {
	if g.LowPower == nil {
		return nil
	}
	return g.LowPower.Out(gpio.Level(lowPower))
}

func (g *GPIOAntennaSwitch) SetTx(txActive bool) error {
	if g.Tx == nil {
		return nil
	}
	return g.Tx.Out(gpio.Level(txActive))
}

// setOpMode changes the radio's operating mode. The antenna switch is set up for
// the new mode first, then the mode is written and the chip given time to settle.
// Nothing happens if the radio already is in the requested mode.
func (d *Device) setOpMode(mode Mode) {
	d.prevOpMode = d.readReg(RegOpMode)
	if d.err != nil || byte(mode) == d.prevOpMode&^opModeMask {
		return
	}

	var err error
	if mode == ModeSleep {
		err = d.antenna.SetLowPower(true)
	} else if err = d.antenna.SetLowPower(false); err == nil {
		err = d.antenna.SetTx(mode == ModeTx)
	}
	if err != nil {
		d.fail(fmt.Errorf("sx1276: antenna switch: %w", err))
		return
	}

	d.writeReg(RegOpMode, d.prevOpMode&opModeMask|byte(mode))
	d.sleep(modeSettleDelay)
}

// opMode returns the mode bits of RegOpMode.
func (d *Device) opMode() Mode {
	return Mode(d.readReg(RegOpMode) &^ opModeMask)
}
