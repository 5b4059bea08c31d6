// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package pwmled

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"

	devices "github.com/tve/pindevices"
)

// BitBangOutput generates PWM in software on any output pin. A goroutine toggles the pin
// while the output is enabled; its timing is only as good as the scheduler's, which is fine
// for an LED.
type BitBangOutput struct {
	pin gpio.PinOut
	clk devices.Clock

	mu      sync.Mutex
	state   State
	stop    chan struct{}
	stopped chan struct{}
}

// NewBitBang returns an Output toggling pin. A nil clock uses the system clock.
func NewBitBang(pin gpio.PinOut, clk devices.Clock) *BitBangOutput {
	if clk == nil {
		clk = devices.SystemClock()
	}
	return &BitBangOutput{pin: pin, clk: clk}
}

// Apply implements Output. The new duty cycle takes effect at the start of the next period.
func (o *BitBangOutput) Apply(s State) error {
	if s.Enabled && (s.Period == 0 || s.Duty > s.Period) {
		return errors.Wrapf(devices.ErrInvalidArgument, "pwmled: invalid state %s", s)
	}
	o.mu.Lock()
	o.state = s
	running := o.stop != nil
	o.mu.Unlock()

	switch {
	case s.Enabled && !running:
		if err := o.pin.Out(gpio.Low); err != nil {
			return err
		}
		o.mu.Lock()
		o.stop, o.stopped = make(chan struct{}), make(chan struct{})
		go o.toggle(o.stop, o.stopped)
		o.mu.Unlock()
	case !s.Enabled && running:
		o.mu.Lock()
		stop, stopped := o.stop, o.stopped
		o.stop, o.stopped = nil, nil
		o.mu.Unlock()
		close(stop)
		<-stopped
		return o.pin.Out(gpio.Low)
	}
	return nil
}

func (o *BitBangOutput) toggle(stop, stopped chan struct{}) {
	defer close(stopped)
	for {
		select {
		case <-stop:
			return
		default:
		}
		o.mu.Lock()
		s := o.state
		o.mu.Unlock()
		high := time.Duration(s.Duty)
		low := time.Duration(s.Period - s.Duty)
		if high > 0 {
			o.pin.Out(gpio.High)
			o.clk.Sleep(high)
		}
		if low > 0 {
			o.pin.Out(gpio.Low)
			o.clk.Sleep(low)
		}
	}
}
