// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package pwmled

import (
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	devices "github.com/tve/pindevices"
)

// PinOutput drives a gpio pin that supports hardware PWM.
type PinOutput struct {
	Pin gpio.PinOut
}

// Apply implements Output. The duty is scaled to periph's gpio.Duty and the period converted
// to a frequency. Disabling the output drives the pin low.
func (o *PinOutput) Apply(s State) error {
	if !s.Enabled {
		return o.Pin.Out(gpio.Low)
	}
	if s.Period == 0 || s.Duty > s.Period {
		return errors.Wrapf(devices.ErrInvalidArgument, "pwmled: invalid state %s", s)
	}
	duty := gpio.Duty(uint64(gpio.DutyMax) * s.Duty / s.Period)
	f := physic.PeriodToFrequency(time.Duration(s.Period))
	return o.Pin.PWM(duty, f)
}
