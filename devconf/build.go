// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package devconf

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"

	devices "github.com/tve/pindevices"
	"github.com/tve/pindevices/chardev"
	"github.com/tve/pindevices/dht11"
	"github.com/tve/pindevices/hc595"
	"github.com/tve/pindevices/hcsr04"
	"github.com/tve/pindevices/pwmled"
)

// BuildOpts supplies the resources used to construct devices. Zero fields get the hardware
// defaults.
type BuildOpts struct {
	Clock   devices.Clock                                  // defaults to the system clock
	Logger  func(device string) devices.LogPrintf          // per-device logger, nil for none
	OpenPin func(name string) (gpio.PinIO, error)          // defaults to devices.OpenPin
	OpenPWM func(chip, channel int) (pwmled.Output, error) // defaults to pwmled.OpenSysfs
}

// Devices holds the devices built from a Config, by name.
type Devices struct {
	Displays     map[string]*hc595.Dev
	Thermometers map[string]*dht11.Dev
	Rangers      map[string]*hcsr04.Dev
	Dimmers      map[string]*pwmled.Dev
}

// Build constructs and starts every device of cfg. A device that cannot acquire its pins is
// skipped and its error is included in the returned error; the other devices are built
// regardless, so the returned Devices is never nil.
func Build(cfg *Config, opts *BuildOpts) (*Devices, error) {
	b := builder{}
	if opts != nil {
		b.BuildOpts = *opts
	}
	if b.OpenPin == nil {
		b.OpenPin = devices.OpenPin
	}
	if b.OpenPWM == nil {
		b.OpenPWM = func(chip, channel int) (pwmled.Output, error) {
			return pwmled.OpenSysfs(chip, channel)
		}
	}
	devs := &Devices{
		Displays:     map[string]*hc595.Dev{},
		Thermometers: map[string]*dht11.Dev{},
		Rangers:      map[string]*hcsr04.Dev{},
		Dimmers:      map[string]*pwmled.Dev{},
	}
	var errs error
	for i := range cfg.Devices {
		d := &cfg.Devices[i]
		if err := b.build(devs, d); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "device %q", d.Name))
		}
	}
	return devs, errs
}

type builder struct {
	BuildOpts
}

func (b *builder) logger(name string) devices.LogPrintf {
	if b.Logger == nil {
		return nil
	}
	return b.Logger(name)
}

func (b *builder) pins(d *Device, keys ...string) ([]gpio.PinIO, error) {
	var pins []gpio.PinIO
	for _, k := range keys {
		p, err := b.OpenPin(d.Pins[k])
		if err != nil {
			return nil, errors.Wrapf(err, "pin %s", k)
		}
		pins = append(pins, p)
	}
	return pins, nil
}

func (b *builder) build(devs *Devices, d *Device) error {
	if err := d.Validate(d.Name); err != nil {
		return err
	}
	if log := b.logger(d.Name); log != nil {
		var pins []string
		for _, k := range d.PinNames() {
			pins = append(pins, fmt.Sprintf("%s=%s", k, d.Pins[k]))
		}
		log("building %s on %s", d.Type, strings.Join(pins, " "))
	}
	switch d.Type {
	case TypeDisplay:
		p, err := b.pins(d, requiredPins[TypeDisplay]...)
		if err != nil {
			return err
		}
		dev, err := hc595.New(hc595.Pins{Data: p[0], Clock: p[1], Latch: p[2], Tens: p[3], Units: p[4]},
			&hc595.Opts{Name: d.Name, Clock: b.Clock, Realtime: d.Realtime, Logger: b.logger(d.Name)})
		if err != nil {
			return err
		}
		dev.Start()
		devs.Displays[d.Name] = dev
	case TypeThermometer:
		p, err := b.pins(d, "data")
		if err != nil {
			return err
		}
		dev, err := dht11.New(p[0], &dht11.Opts{Name: d.Name, Clock: b.Clock, Logger: b.logger(d.Name)})
		if err != nil {
			return err
		}
		devs.Thermometers[d.Name] = dev
	case TypeRanger:
		p, err := b.pins(d, "trigger", "echo")
		if err != nil {
			return err
		}
		dev, err := hcsr04.New(p[0], p[1], &hcsr04.Opts{Name: d.Name, Clock: b.Clock, Logger: b.logger(d.Name)})
		if err != nil {
			return err
		}
		devs.Rangers[d.Name] = dev
	case TypeDimmer:
		var out pwmled.Output
		if d.PWM != nil {
			o, err := b.OpenPWM(d.PWM.Chip, d.PWM.Channel)
			if err != nil {
				return errors.Wrapf(devices.ErrAcquire, "pwmchip%d/pwm%d: %v", d.PWM.Chip, d.PWM.Channel, err)
			}
			out = o
		} else {
			p, err := b.pins(d, "out")
			if err != nil {
				return err
			}
			if d.Software {
				out = pwmled.NewBitBang(p[0], b.Clock)
			} else {
				out = &pwmled.PinOutput{Pin: p[0]}
			}
		}
		dev, err := pwmled.New(out, &pwmled.Opts{Name: d.Name, Logger: b.logger(d.Name)})
		if err != nil {
			return err
		}
		devs.Dimmers[d.Name] = dev
	default:
		return errors.Wrapf(devices.ErrInvalidArgument, "unknown device type %q", d.Type)
	}
	return nil
}

// Node returns the byte-stream surface of the named device.
func (devs *Devices) Node(name string) (chardev.Node, bool) {
	if d, ok := devs.Displays[name]; ok {
		return chardev.Display{Dev: d}, true
	}
	if d, ok := devs.Thermometers[name]; ok {
		return chardev.Thermometer{Dev: d}, true
	}
	if d, ok := devs.Rangers[name]; ok {
		return chardev.Ranger{Dev: d}, true
	}
	if d, ok := devs.Dimmers[name]; ok {
		return chardev.Dimmer{Dev: d}, true
	}
	return nil, false
}

// Len returns the number of devices.
func (devs *Devices) Len() int {
	return len(devs.Displays) + len(devs.Thermometers) + len(devs.Rangers) + len(devs.Dimmers)
}

// Close stops the displays and halts all devices, it returns all the errors encountered.
func (devs *Devices) Close() error {
	var errs error
	for n, d := range devs.Displays {
		errs = multierr.Append(errs, errors.Wrapf(d.Halt(), "device %q", n))
	}
	for n, d := range devs.Thermometers {
		errs = multierr.Append(errs, errors.Wrapf(d.Halt(), "device %q", n))
	}
	for n, d := range devs.Rangers {
		errs = multierr.Append(errs, errors.Wrapf(d.Halt(), "device %q", n))
	}
	for n, d := range devs.Dimmers {
		errs = multierr.Append(errs, errors.Wrapf(d.Halt(), "device %q", n))
	}
	return errs
}
