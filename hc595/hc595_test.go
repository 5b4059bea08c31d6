// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package hc595

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"go.viam.com/test"
	"periph.io/x/conn/v3/gpio"

	devices "github.com/tve/pindevices"
	"github.com/tve/pindevices/devicestest"
)

var glyphs = map[string]struct {
	digit uint8
	seg   byte
}{
	"zero":  {0, 0b00111111},
	"one":   {1, 0b00000110},
	"two":   {2, 0b01011011},
	"three": {3, 0b01001111},
	"four":  {4, 0b01100110},
	"five":  {5, 0b01101101},
	"six":   {6, 0b01111101},
	"seven": {7, 0b00000111},
	"eight": {8, 0b01111111},
	"nine":  {9, 0b01101111},
	"ten":   {10, 0b01111001},
	"max":   {255, 0b01111001},
}

func TestSegmentsFor(t *testing.T) {
	for n, tc := range glyphs {
		got := SegmentsFor(tc.digit)
		if got != tc.seg {
			t.Fatalf("%s: got %#08b expected %#08b", n, got, tc.seg)
		}
		// No decimal point, ever.
		test.That(t, got&0x80, test.ShouldEqual, 0)
	}
}

type rig struct {
	clk  *devicestest.Clock
	rec  *devicestest.Recorder
	pins map[string]*devicestest.Pin
	dev  *Dev
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{clk: devicestest.NewClock(), rec: &devicestest.Recorder{}, pins: map[string]*devicestest.Pin{}}
	for _, n := range []string{"data", "clk", "latch", "tens", "units"} {
		p := devicestest.NewPin(n, r.clk)
		p.Rec = r.rec
		r.pins[n] = p
	}
	dev, err := New(Pins{
		Data: r.pins["data"], Clock: r.pins["clk"], Latch: r.pins["latch"],
		Tens: r.pins["tens"], Units: r.pins["units"],
	}, &Opts{Clock: r.clk})
	test.That(t, err, test.ShouldBeNil)
	r.dev = dev
	return r
}

// frame is a byte latched into the register and the digit that was lit with it.
type frame struct {
	seg   byte
	digit string
}

// decode replays the pin writes through a model of the 74HC595.
func decode(events []devicestest.Event) []frame {
	var (
		shift, latched byte
		data           gpio.Level
		level          = map[string]gpio.Level{}
		frames         []frame
	)
	for _, e := range events {
		rising := e.L == gpio.High && level[e.Pin] == gpio.Low
		level[e.Pin] = e.L
		switch e.Pin {
		case "data":
			data = e.L
		case "clk":
			if rising {
				shift <<= 1
				if data {
					shift |= 1
				}
			}
		case "latch":
			if rising {
				latched = shift
			}
		case "tens", "units":
			if rising {
				frames = append(frames, frame{latched, e.Pin})
			}
		}
	}
	return frames
}

func runFor(t *testing.T, r *rig, events int) {
	t.Helper()
	r.dev.Start()
	deadline := time.Now().Add(5 * time.Second)
	for r.rec.Len() < events {
		if time.Now().After(deadline) {
			t.Fatalf("refresh produced only %d pin writes", r.rec.Len())
		}
		runtime.Gosched()
	}
	r.dev.Stop()
}

func TestNewInitializesPins(t *testing.T) {
	r := newRig(t)
	for n, p := range r.pins {
		if p.Read() != gpio.Low {
			t.Fatalf("pin %s not low after New", n)
		}
	}
	tens, units := r.dev.Digits()
	test.That(t, tens, test.ShouldEqual, 0)
	test.That(t, units, test.ShouldEqual, 0)
}

func TestNewMissingPin(t *testing.T) {
	clk := devicestest.NewClock()
	p := devicestest.NewPin("p", clk)
	_, err := New(Pins{Data: p, Clock: p, Latch: p, Tens: p}, &Opts{Clock: clk})
	test.That(t, errors.Is(err, devices.ErrAcquire), test.ShouldBeTrue)
}

func TestNewFailingPin(t *testing.T) {
	clk := devicestest.NewClock()
	p := devicestest.NewPin("p", clk)
	bad := devicestest.NewPin("bad", clk)
	bad.OutErr = errors.New("busy")
	_, err := New(Pins{Data: p, Clock: p, Latch: bad, Tens: p, Units: p}, &Opts{Clock: clk})
	test.That(t, errors.Is(err, devices.ErrAcquire), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "latch")
}

func TestRefreshOrder(t *testing.T) {
	r := newRig(t)
	r.dev.SetDigits(4, 2)
	runFor(t, r, 500)

	frames := decode(r.rec.Events())
	test.That(t, len(frames), test.ShouldBeGreaterThanOrEqualTo, 4)
	for i, f := range frames {
		if i%2 == 0 {
			test.That(t, f, test.ShouldResemble, frame{SegmentsFor(2), "units"})
		} else {
			test.That(t, f, test.ShouldResemble, frame{SegmentsFor(4), "tens"})
		}
	}
}

func TestRefreshErrorGlyph(t *testing.T) {
	r := newRig(t)
	r.dev.SetDigits(12, 7)
	runFor(t, r, 200)

	frames := decode(r.rec.Events())
	test.That(t, len(frames), test.ShouldBeGreaterThanOrEqualTo, 2)
	test.That(t, frames[0], test.ShouldResemble, frame{SegmentsFor(7), "units"})
	test.That(t, frames[1], test.ShouldResemble, frame{ErrorGlyph, "tens"})
}

func TestOneDigitLitAtATime(t *testing.T) {
	r := newRig(t)
	r.dev.SetDigits(8, 8)
	runFor(t, r, 500)

	lit := map[string]bool{}
	for _, e := range r.rec.Events() {
		if e.Pin != "tens" && e.Pin != "units" {
			continue
		}
		lit[e.Pin] = bool(e.L)
		if lit["tens"] && lit["units"] {
			t.Fatalf("both digits lit at %s", e.At)
		}
	}
}

func TestHoldTime(t *testing.T) {
	r := newRig(t)
	runFor(t, r, 500)

	var on time.Time
	for _, e := range r.rec.Events() {
		if e.Pin != "units" {
			continue
		}
		if e.L == gpio.High {
			on = e.At
			continue
		}
		if on.IsZero() {
			continue
		}
		// The units digit is switched off at the start of the tens half-cycle, right after
		// its hold.
		held := e.At.Sub(on)
		test.That(t, held, test.ShouldBeBetweenOrEqual, holdMin, holdMin+holdJitter)
		on = time.Time{}
	}
}

func TestStopLeavesPinsDeasserted(t *testing.T) {
	r := newRig(t)
	r.dev.SetDigits(1, 9)
	runFor(t, r, 300)

	n := r.rec.Len()
	for _, name := range []string{"tens", "units", "clk", "latch"} {
		test.That(t, r.pins[name].Read(), test.ShouldEqual, gpio.Low)
	}
	// Nothing touches the pins once Stop has returned.
	r.clk.Sleep(time.Second)
	test.That(t, r.rec.Len(), test.ShouldEqual, n)

	// Stopping twice is harmless, and the display can be restarted.
	r.dev.Stop()
	runFor(t, r, n+200)
}

func TestSetDigitsWhileRunning(t *testing.T) {
	r := newRig(t)
	r.dev.SetDigits(1, 1)
	r.dev.Start()
	for i := uint8(0); i < 100; i++ {
		r.dev.SetDigits(i%10, 9-i%10)
		runtime.Gosched()
	}
	r.dev.SetDigits(3, 5)
	tens, units := r.dev.Digits()
	test.That(t, tens, test.ShouldEqual, 3)
	test.That(t, units, test.ShouldEqual, 5)
	start := r.rec.Len()
	deadline := time.Now().Add(5 * time.Second)
	for r.rec.Len() < start+300 && time.Now().Before(deadline) {
		runtime.Gosched()
	}
	r.dev.Stop()

	frames := decode(r.rec.Events())
	test.That(t, len(frames), test.ShouldBeGreaterThanOrEqualTo, 2)
	last := frames[len(frames)-2:]
	want := map[string]byte{"units": SegmentsFor(5), "tens": SegmentsFor(3)}
	for _, f := range last {
		test.That(t, f.seg, test.ShouldEqual, want[f.digit])
	}
}
