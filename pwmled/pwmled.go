// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// The pwmled package dims an LED by driving it with a 1kHz PWM signal whose duty cycle is set
// in percent.
//
// The PWM generator itself is behind the Output interface: PinOutput uses a periph gpio pin
// with hardware PWM support, SysfsOutput uses a channel of a Linux PWM chip through
// /sys/class/pwm. Each change is handed to the output as one complete State; an output that
// rejects it must leave the previous configuration in effect.
package pwmled

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	devices "github.com/tve/pindevices"
)

const (
	// Period is the PWM period in nanoseconds, 1ms for 1kHz.
	Period uint64 = 1000000
	// DefaultPercent is the duty cycle applied when the device is initialized.
	DefaultPercent = 50
)

// State is a complete PWM configuration, times are in nanoseconds.
type State struct {
	Period  uint64
	Duty    uint64
	Enabled bool
}

func (s State) String() string {
	return fmt.Sprintf("%d/%dns enabled=%t", s.Duty, s.Period, s.Enabled)
}

// StateFor returns the enabled state for a duty cycle percentage at Period. Percentages
// outside 0..100 return an error wrapping devices.ErrInvalidArgument.
func StateFor(percent int) (State, error) {
	if percent < 0 || percent > 100 {
		return State{}, errors.Wrapf(devices.ErrInvalidArgument,
			"pwmled: duty cycle %d%% must be between 0 and 100", percent)
	}
	return State{Period: Period, Duty: Period * uint64(percent) / 100, Enabled: true}, nil
}

// Output applies PWM states to the hardware. Apply must be all or nothing.
type Output interface {
	Apply(s State) error
}

// Opts contains options used when initializing a Dev.
type Opts struct {
	Name   string            // label used in logs, defaults to "pwmled"
	Logger devices.LogPrintf // function to use for logging
}

// Dev is a PWM dimmed LED.
type Dev struct {
	name    string
	out     Output
	log     devices.LogPrintf
	mu      sync.Mutex // serializes Apply calls
	percent int
	state   State
}

// New configures the output to DefaultPercent so the LED is never left in an unknown state.
func New(out Output, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &Opts{}
	}
	if out == nil {
		return nil, errors.Wrap(devices.ErrAcquire, "pwmled: output missing")
	}
	d := &Dev{name: opts.Name, out: out}
	if d.name == "" {
		d.name = "pwmled"
	}
	d.log = devices.Prefixed(opts.Logger, d.name+": ")
	if err := d.SetDutyPercent(DefaultPercent); err != nil {
		return nil, errors.Wrapf(devices.ErrAcquire, "pwmled: cannot initialize output: %v", err)
	}
	return d, nil
}

func (d *Dev) String() string {
	return d.name
}

// SetDutyPercent sets the duty cycle. An out of range percentage returns an error wrapping
// devices.ErrInvalidArgument without touching the output; if the output rejects the new
// state the error wraps devices.ErrApply and the previous state stays in effect.
func (d *Dev) SetDutyPercent(percent int) error {
	s, err := StateFor(percent)
	if err != nil {
		d.log("%v", err)
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.out.Apply(s); err != nil {
		d.log("failed to apply %s: %v", s, err)
		return errors.Wrapf(devices.ErrApply, "pwmled: %s: %v", s, err)
	}
	d.percent, d.state = percent, s
	d.log("duty cycle set to %d%%", percent)
	return nil
}

// DutyPercent returns the last duty cycle successfully applied.
func (d *Dev) DutyPercent() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.percent
}

// State returns the last state successfully applied.
func (d *Dev) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Halt implements conn.Resource, it disables the PWM output. A later SetDutyPercent enables
// it again.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.state
	s.Enabled = false
	if err := d.out.Apply(s); err != nil {
		return errors.Wrapf(devices.ErrApply, "pwmled: cannot disable: %v", err)
	}
	d.state = s
	return nil
}
