// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package pwmled

import (
	"errors"
	"fmt"
	"testing"

	"go.viam.com/test"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"

	devices "github.com/tve/pindevices"
)

// fakeOutput records applied states and fails when err is set.
type fakeOutput struct {
	states []State
	err    error
}

func (f *fakeOutput) Apply(s State) error {
	if f.err != nil {
		return f.err
	}
	f.states = append(f.states, s)
	return nil
}

func (f *fakeOutput) last() State {
	return f.states[len(f.states)-1]
}

func TestStateFor(t *testing.T) {
	for _, tc := range []struct {
		percent int
		duty    uint64
	}{{0, 0}, {1, 10000}, {50, 500000}, {99, 990000}, {100, 1000000}} {
		s, err := StateFor(tc.percent)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, s, test.ShouldResemble, State{Period: Period, Duty: tc.duty, Enabled: true})
	}
	for _, p := range []int{-1, 101, 1000} {
		_, err := StateFor(p)
		test.That(t, errors.Is(err, devices.ErrInvalidArgument), test.ShouldBeTrue)
	}
}

func TestNewAppliesDefault(t *testing.T) {
	out := &fakeOutput{}
	d, err := New(out, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.DutyPercent(), test.ShouldEqual, DefaultPercent)
	test.That(t, out.states, test.ShouldResemble, []State{{Period: 1000000, Duty: 500000, Enabled: true}})
	test.That(t, d.String(), test.ShouldEqual, "pwmled")
}

func TestNewFailingOutput(t *testing.T) {
	_, err := New(&fakeOutput{err: fmt.Errorf("no such device")}, nil)
	test.That(t, errors.Is(err, devices.ErrAcquire), test.ShouldBeTrue)
	_, err = New(nil, nil)
	test.That(t, errors.Is(err, devices.ErrAcquire), test.ShouldBeTrue)
}

func TestSetDutyPercent(t *testing.T) {
	out := &fakeOutput{}
	d, err := New(out, &Opts{Name: "led"})
	test.That(t, err, test.ShouldBeNil)

	test.That(t, d.SetDutyPercent(75), test.ShouldBeNil)
	test.That(t, out.last().Duty, test.ShouldEqual, 750000)
	test.That(t, d.DutyPercent(), test.ShouldEqual, 75)

	test.That(t, d.SetDutyPercent(0), test.ShouldBeNil)
	test.That(t, out.last(), test.ShouldResemble, State{Period: Period, Duty: 0, Enabled: true})

	test.That(t, d.SetDutyPercent(100), test.ShouldBeNil)
	test.That(t, out.last().Duty, test.ShouldEqual, Period)
}

func TestSetDutyPercentOutOfRange(t *testing.T) {
	out := &fakeOutput{}
	d, err := New(out, nil)
	test.That(t, err, test.ShouldBeNil)
	for _, p := range []int{-5, 101} {
		err := d.SetDutyPercent(p)
		test.That(t, errors.Is(err, devices.ErrInvalidArgument), test.ShouldBeTrue)
	}
	test.That(t, len(out.states), test.ShouldEqual, 1)
	test.That(t, d.DutyPercent(), test.ShouldEqual, DefaultPercent)
}

func TestSetDutyPercentApplyFails(t *testing.T) {
	out := &fakeOutput{}
	d, err := New(out, nil)
	test.That(t, err, test.ShouldBeNil)
	out.err = fmt.Errorf("EBUSY")
	err = d.SetDutyPercent(20)
	test.That(t, errors.Is(err, devices.ErrApply), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "EBUSY")
	test.That(t, d.DutyPercent(), test.ShouldEqual, DefaultPercent)
	test.That(t, d.State().Duty, test.ShouldEqual, 500000)
}

func TestHalt(t *testing.T) {
	out := &fakeOutput{}
	d, err := New(out, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.Halt(), test.ShouldBeNil)
	test.That(t, out.last(), test.ShouldResemble, State{Period: Period, Duty: 500000, Enabled: false})
	test.That(t, d.SetDutyPercent(10), test.ShouldBeNil)
	test.That(t, out.last().Enabled, test.ShouldBeTrue)
}

func TestPinOutput(t *testing.T) {
	p := &gpiotest.Pin{N: "PWM0"}
	d, err := New(&PinOutput{Pin: p}, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.D, test.ShouldEqual, gpio.DutyMax/2)
	test.That(t, p.F, test.ShouldEqual, physic.KiloHertz)

	test.That(t, d.SetDutyPercent(100), test.ShouldBeNil)
	test.That(t, p.D, test.ShouldEqual, gpio.DutyMax)
	test.That(t, d.SetDutyPercent(0), test.ShouldBeNil)
	test.That(t, p.D, test.ShouldEqual, gpio.Duty(0))

	p.L = gpio.High
	test.That(t, d.Halt(), test.ShouldBeNil)
	test.That(t, p.L, test.ShouldEqual, gpio.Low)
}
