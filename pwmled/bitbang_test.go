// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package pwmled

import (
	"testing"
	"time"

	"go.viam.com/test"
	"periph.io/x/conn/v3/gpio"

	"github.com/tve/pindevices/devicestest"
)

func waitEvents(t *testing.T, rec *devicestest.Recorder, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for rec.Len() < n {
		if time.Now().After(deadline) {
			t.Fatalf("got %d pin writes, expected at least %d", rec.Len(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBitBang(t *testing.T) {
	clk := devicestest.NewClock()
	rec := &devicestest.Recorder{}
	pin := devicestest.NewPin("led", clk)
	pin.Rec = rec
	o := NewBitBang(pin, clk)
	d, err := New(o, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.SetDutyPercent(25), test.ShouldBeNil)
	waitEvents(t, rec, rec.Len()+8)
	test.That(t, d.Halt(), test.ShouldBeNil)

	ev := rec.Events()
	test.That(t, ev[0].L, test.ShouldEqual, gpio.Low)
	test.That(t, ev[len(ev)-1].L, test.ShouldEqual, gpio.Low)
	// Find a full 25% period: high for 250us, low for 750us.
	found := false
	for i := 1; i+2 < len(ev); i++ {
		if ev[i].L == gpio.High && ev[i+1].L == gpio.Low && ev[i+2].L == gpio.High &&
			ev[i+1].At.Sub(ev[i].At) == 250*time.Microsecond {
			test.That(t, ev[i+2].At.Sub(ev[i+1].At), test.ShouldEqual, 750*time.Microsecond)
			found = true
			break
		}
	}
	test.That(t, found, test.ShouldBeTrue)

	// Halted: no more toggling.
	n := rec.Len()
	time.Sleep(10 * time.Millisecond)
	test.That(t, rec.Len(), test.ShouldEqual, n)
}

func TestBitBangExtremes(t *testing.T) {
	clk := devicestest.NewClock()
	rec := &devicestest.Recorder{}
	pin := devicestest.NewPin("led", clk)
	pin.Rec = rec
	o := NewBitBang(pin, clk)

	test.That(t, o.Apply(State{Period: Period, Duty: Period, Enabled: true}), test.ShouldBeNil)
	waitEvents(t, rec, 5)
	test.That(t, o.Apply(State{Period: Period, Duty: Period, Enabled: false}), test.ShouldBeNil)
	ev := rec.Events()
	for _, e := range ev[1 : len(ev)-1] {
		test.That(t, e.L, test.ShouldEqual, gpio.High)
	}

	test.That(t, o.Apply(State{Period: 100, Duty: 200, Enabled: true}), test.ShouldNotBeNil)
}
