// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// The hcsr04 package measures distances with an HC-SR04 ultrasonic ranging module.
//
// A 10us pulse on the trigger pin makes the module emit a 40kHz burst; it then raises its echo
// pin and lowers it again when the reflection comes back, so the echo pulse width is the
// round-trip time of the sound. Both the wait for the echo to start and the wait for it to
// end are bounded by Timeout, which exceeds the round trip at the module's maximum range.
//
// The conversion to distance is done in integer arithmetic: with t the pulse width in whole
// microseconds and 340m/s for the speed of sound, the one-way distance is t*340*50/100000
// tenths of a centimetre, truncated.
package hcsr04

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	devices "github.com/tve/pindevices"
)

const (
	triggerPulse = 10 * time.Microsecond
	// Timeout bounds each of the two waits on the echo pin.
	Timeout = 220 * 60 * time.Microsecond
)

// Millimetres converts an echo pulse width to a distance in tenths of a centimetre.
func Millimetres(echo time.Duration) int64 {
	us := int64(echo / time.Microsecond)
	return us * 340 * 50 / 100000
}

// Format renders a distance in tenths of a centimetre the way the character device does:
// centimetres with one decimal.
func Format(mm int64) string {
	return fmt.Sprintf("Distance : %d.%d\n", mm/10, mm%10)
}

// Opts contains options used when initializing a Dev.
type Opts struct {
	Name   string            // label used in logs, defaults to "hcsr04"
	Clock  devices.Clock     // time source, defaults to the system clock
	Logger devices.LogPrintf // function to use for logging
}

// Dev is an HC-SR04 module.
type Dev struct {
	name    string
	trigger gpio.PinOut
	echo    gpio.PinIn
	clk     devices.Clock
	log     devices.LogPrintf
}

// New drives the trigger pin low and sets the echo pin as input.
func New(trigger gpio.PinOut, echo gpio.PinIn, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &Opts{}
	}
	if trigger == nil || echo == nil {
		return nil, errors.Wrap(devices.ErrAcquire, "hcsr04: trigger and echo pins are required")
	}
	d := &Dev{name: opts.Name, trigger: trigger, echo: echo, clk: opts.Clock}
	if d.name == "" {
		d.name = "hcsr04"
	}
	if d.clk == nil {
		d.clk = devices.SystemClock()
	}
	d.log = devices.Prefixed(opts.Logger, d.name+": ")
	if err := trigger.Out(gpio.Low); err != nil {
		return nil, errors.Wrapf(devices.ErrAcquire, "hcsr04: cannot drive trigger %s: %v", trigger, err)
	}
	if err := echo.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return nil, errors.Wrapf(devices.ErrAcquire, "hcsr04: cannot set echo %s as input: %v", echo, err)
	}
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("%s{%s,%s}", d.name, d.trigger, d.echo)
}

// Halt implements conn.Resource.
func (d *Dev) Halt() error {
	return d.trigger.Out(gpio.Low)
}

// Measure triggers a ping and returns the distance to the nearest obstacle in tenths of a
// centimetre. If no echo starts or the echo does not end within Timeout it returns an error
// wrapping devices.ErrTimeout.
func (d *Dev) Measure() (int64, error) {
	echo, err := d.ping()
	if err != nil {
		return 0, err
	}
	mm := Millimetres(echo)
	d.log("echo %s: %dmm", echo, mm)
	return mm, nil
}

// Distance is Measure returning a physic.Distance.
func (d *Dev) Distance() (physic.Distance, error) {
	mm, err := d.Measure()
	if err != nil {
		return 0, err
	}
	return physic.Distance(mm) * physic.MilliMetre, nil
}

// ping sends the trigger pulse and times the echo pulse.
func (d *Dev) ping() (time.Duration, error) {
	d.log("start measure")
	if err := d.trigger.Out(gpio.High); err != nil {
		return 0, errors.Wrap(err, "hcsr04: cannot trigger")
	}
	devices.Delay(d.clk, triggerPulse)
	d.trigger.Out(gpio.Low)

	if _, err := devices.WaitFor(d.clk, d.echo, gpio.High, Timeout); err != nil {
		return 0, errors.Wrap(err, "hcsr04: no echo")
	}
	width, err := devices.WaitFor(d.clk, d.echo, gpio.Low, Timeout)
	if err != nil {
		return 0, errors.Wrap(err, "hcsr04: echo did not end")
	}
	return width, nil
}
