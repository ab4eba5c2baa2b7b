package sx1276

import (
	"fmt"

	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// PeriphConfig names the host resources the radio is wired to, as known to the
// periph registries. Empty pin names mean not connected.
type PeriphConfig struct {
	SPIPort  string           // "" selects the first SPI port
	SPIClock physic.Frequency // default 8MHz
	Reset    string
	CS       string   // only if the SPI driver doesn't drive chip select
	DIO      []string // DIO[i] is the pin connected to DIOi

	AntennaLowPower string
	AntennaTx       string
}

const defaultSPIClock = 8 * physic.MegaHertz

// Open initializes the periph host drivers, opens the SPI port and pins in cfg,
// checks the chip version and runs Init. The SPI port is closed by Close.
func Open(cfg PeriphConfig, opts Options) (*Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	if _, err := driverreg.Init(); err != nil {
		return nil, err
	}

	var pins Pins
	var err error
	if cfg.Reset != "" {
		if pins.Reset, err = pinByName("reset", cfg.Reset); err != nil {
			return nil, err
		}
	}
	if cfg.CS != "" {
		if pins.CS, err = pinByName("chip select", cfg.CS); err != nil {
			return nil, err
		}
	}
	pins.DIO = make([]gpio.PinIn, len(cfg.DIO))
	for i, name := range cfg.DIO {
		if name == "" {
			continue
		}
		if pins.DIO[i], err = pinByName(fmt.Sprintf("DIO%d", i), name); err != nil {
			return nil, err
		}
	}
	if opts.Antenna == nil && (cfg.AntennaLowPower != "" || cfg.AntennaTx != "") {
		sw := &GPIOAntennaSwitch{}
		if cfg.AntennaLowPower != "" {
			if sw.LowPower, err = pinByName("antenna low power", cfg.AntennaLowPower); err != nil {
				return nil, err
			}
		}
		if cfg.AntennaTx != "" {
			if sw.Tx, err = pinByName("antenna tx", cfg.AntennaTx); err != nil {
				return nil, err
			}
		}
		opts.Antenna = sw
	}

	p, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, err
	}
	clock := cfg.SPIClock
	if clock == 0 {
		clock = defaultSPIClock
	}
	c, err := p.Connect(clock, spi.Mode0, 8)
	if err != nil {
		p.Close()
		return nil, err
	}

	d := New(c, pins, opts)
	d.port = p

	ok, err := d.Test()
	if err == nil && !ok {
		err = ErrVersionMismatch
	}
	if err == nil {
		err = d.Init()
	}
	if err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func pinByName(role, name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s pin %q", ErrMissingPin, role, name)
	}
	return p, nil
}
