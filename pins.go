// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package devices

import (
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// OpenPin looks up a gpio pin by name or number in periph's registry. The host drivers must
// have been loaded (host.Init) beforehand.
func OpenPin(name string) (gpio.PinIO, error) {
	if name == "" {
		return nil, errors.Wrap(ErrAcquire, "empty pin name")
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errors.Wrapf(ErrAcquire, "no gpio pin %q", name)
	}
	return p, nil
}

// OpenOut opens a pin and configures it as an output at the given level.
func OpenOut(name string, l gpio.Level) (gpio.PinIO, error) {
	p, err := OpenPin(name)
	if err != nil {
		return nil, err
	}
	if err := p.Out(l); err != nil {
		return nil, errors.Wrapf(ErrAcquire, "cannot set %s as output: %v", p, err)
	}
	return p, nil
}

// OpenIn opens a pin and configures it as an input with the given pull, without edge
// detection.
func OpenIn(name string, pull gpio.Pull) (gpio.PinIO, error) {
	p, err := OpenPin(name)
	if err != nil {
		return nil, err
	}
	if err := p.In(pull, gpio.NoEdge); err != nil {
		return nil, errors.Wrapf(ErrAcquire, "cannot set %s as input: %v", p, err)
	}
	return p, nil
}
