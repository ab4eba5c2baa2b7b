package sx1276

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// brokenPin is an output that can't be driven.
type brokenPin struct {
	gpiotest.Pin
	err error
}

func (p *brokenPin) Out(gpio.Level) error { return p.err }

func Test_GPIOAntennaSwitch(t *testing.T) {
	lp, tx := &gpiotest.Pin{N: "lp"}, &gpiotest.Pin{N: "tx"}
	sw := &GPIOAntennaSwitch{LowPower: lp, Tx: tx}
	if err := sw.SetLowPower(true); err != nil {
		t.Fatal(err)
	}
	if err := sw.SetTx(true); err != nil {
		t.Fatal(err)
	}
	if lp.Read() != gpio.High || tx.Read() != gpio.High {
		t.Errorf("got lp %s tx %s expected both high", lp.Read(), tx.Read())
	}
	if err := sw.SetTx(false); err != nil {
		t.Fatal(err)
	}
	if tx.Read() != gpio.Low {
		t.Errorf("tx got %s expected low", tx.Read())
	}

	none := &GPIOAntennaSwitch{}
	if err := none.SetLowPower(true); err != nil {
		t.Errorf("SetLowPower without pin got %v", err)
	}
	if err := none.SetTx(true); err != nil {
		t.Errorf("SetTx without pin got %v", err)
	}

	pinErr := errors.New("pin stuck")
	broken := &GPIOAntennaSwitch{Tx: &brokenPin{err: pinErr}}
	if err := broken.SetTx(true); !errors.Is(err, pinErr) {
		t.Errorf("got %v expected %v", err, pinErr)
	}
}

func Test_AntennaErrorIsSticky(t *testing.T) {
	chip := newFakeChip()
	ant := &antennaLog{}
	d := initDevice(t, chip, Options{Antenna: ant})
	swErr := errors.New("rf switch fault")
	ant.fail(swErr)

	m := chip.mark()
	if err := d.SetStandby(); !errors.Is(err, swErr) {
		t.Fatalf("SetStandby got %v expected to wrap %v", err, swErr)
	}
	if got := chip.valuesWritten(m, RegOpMode); len(got) != 0 {
		t.Errorf("OpMode written despite the switch failing: % x", got)
	}
	if err := d.Err(); !errors.Is(err, swErr) {
		t.Errorf("Err got %v", err)
	}
	if err := d.SetSleep(); !errors.Is(err, swErr) {
		t.Errorf("SetSleep got %v expected the recorded error", err)
	}
}
