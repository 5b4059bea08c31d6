// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// The hc595 package drives two multiplexed 7-segment digits through a 74HC595 serial-in
// parallel-out shift register.
//
// The segment lines of both digits are wired in parallel to the outputs of the shift register
// (Q0..Q7 = a..g and the decimal point) and each digit's common line is switched by its own
// gpio pin. The display has no memory: a background goroutine shifts one digit's segment
// pattern into the register, latches it, lights that digit for roughly 300us, and then does
// the same for the other digit, forever. Persistence of vision does the rest.
//
// The hold time of each digit is randomized between 250us and 350us.
//
// Writes to the digits are not synchronized with the refresh: SetDigits stores the pair
// atomically and the next refresh cycle picks it up.
//
// Datasheet: https://www.ti.com/lit/ds/symlink/sn74hc595.pdf
package hc595

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"periph.io/x/conn/v3/gpio"

	devices "github.com/tve/pindevices"
	"github.com/tve/pindevices/thread"
)

const (
	settle     = 100 * time.Nanosecond // setup/hold time for data, clock and latch edges
	holdMin    = 250 * time.Microsecond
	holdJitter = 100 * time.Microsecond // hold is holdMin..holdMin+holdJitter inclusive
)

// ErrorGlyph is the segment pattern shown for values that are not a decimal digit, an "E".
const ErrorGlyph byte = 0x79

// segments maps digits to their a..g segment patterns, bit 0 is segment a.
var segments = [10]byte{
	0x3f, // 0
	0x06, // 1
	0x5b, // 2
	0x4f, // 3
	0x66, // 4
	0x6d, // 5
	0x7d, // 6
	0x07, // 7
	0x7f, // 8
	0x6f, // 9
}

// SegmentsFor returns the segment pattern for digit d, or ErrorGlyph if d > 9.
func SegmentsFor(d uint8) byte {
	if d < 10 {
		return segments[d]
	}
	return ErrorGlyph
}

// Pins are the gpio lines the display is wired to.
type Pins struct {
	Data  gpio.PinOut // serial data in (DS)
	Clock gpio.PinOut // shift register clock (SHCP)
	Latch gpio.PinOut // storage register clock (STCP)
	Tens  gpio.PinOut // digit select of the left digit, active high
	Units gpio.PinOut // digit select of the right digit, active high
}

// Opts contains options used when initializing a Dev.
type Opts struct {
	Name     string            // label used in logs, defaults to "hc595"
	Clock    devices.Clock     // time source, defaults to the system clock
	Realtime bool              // run the refresh goroutine with realtime priority
	Logger   devices.LogPrintf // function to use for logging
}

// Dev is a two digit display behind a 74HC595.
type Dev struct {
	name     string
	pins     Pins
	clk      devices.Clock
	realtime bool
	log      devices.LogPrintf
	digits   atomic.Uint32 // tens<<8 | units
	rnd      *rand.Rand    // only used by the refresh goroutine

	mu     sync.Mutex // guards cancel and done
	cancel context.CancelFunc
	done   chan struct{}
}

// New initializes the pins of the display, all low, which turns both digits off. The
// refresh goroutine is not started, see Start.
func New(pins Pins, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &Opts{}
	}
	d := &Dev{
		name:     opts.Name,
		pins:     pins,
		clk:      opts.Clock,
		realtime: opts.Realtime,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if d.name == "" {
		d.name = "hc595"
	}
	if d.clk == nil {
		d.clk = devices.SystemClock()
	}
	d.log = devices.Prefixed(opts.Logger, d.name+": ")

	named := []struct {
		name string
		pin  gpio.PinOut
	}{
		{"data", pins.Data}, {"clock", pins.Clock}, {"latch", pins.Latch},
		{"tens", pins.Tens}, {"units", pins.Units},
	}
	for _, n := range named {
		if n.pin == nil {
			return nil, errors.Wrapf(devices.ErrAcquire, "hc595: %s pin missing", n.name)
		}
		if err := n.pin.Out(gpio.Low); err != nil {
			return nil, errors.Wrapf(devices.ErrAcquire, "hc595: cannot drive %s pin %s: %v",
				n.name, n.pin, err)
		}
	}
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("%s{%s}", d.name, d.pins.Data)
}

// SetDigits changes the digits shown. Values above 9 show ErrorGlyph. It never blocks on
// the refresh goroutine.
func (d *Dev) SetDigits(tens, units uint8) {
	d.digits.Store(uint32(tens)<<8 | uint32(units))
	d.log("digits %d %d", tens, units)
}

// Digits returns the digits last set.
func (d *Dev) Digits() (tens, units uint8) {
	v := d.digits.Load()
	return uint8(v >> 8), uint8(v)
}

// Start launches the refresh goroutine. Calling Start on a running display has no effect.
func (d *Dev) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})
	go d.refresh(ctx, d.done)
}

// Stop asks the refresh goroutine to exit and waits until it has. On return both digits
// are off, clock and latch are low, and the pins are no longer touched.
func (d *Dev) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done == nil {
		return
	}
	d.cancel()
	<-d.done
	d.cancel, d.done = nil, nil
}

// Halt implements conn.Resource.
func (d *Dev) Halt() error {
	d.Stop()
	return nil
}

// refresh multiplexes the two digits until ctx is canceled, checking once per full cycle.
func (d *Dev) refresh(ctx context.Context, done chan struct{}) {
	defer close(done)
	if d.realtime {
		if err := thread.Realtime(); err != nil {
			d.log("running at normal priority: %v", err)
		}
	}
	d.log("refresh started")
	for {
		select {
		case <-ctx.Done():
			d.blank()
			d.log("refresh stopped")
			return
		default:
		}
		tens, units := d.Digits()
		d.show(d.pins.Units, SegmentsFor(units))
		d.show(d.pins.Tens, SegmentsFor(tens))
	}
}

// show turns both digits off, loads pattern into the output register and then lights the
// digit selected by sel for the hold time.
func (d *Dev) show(sel gpio.PinOut, pattern byte) {
	// Errors are ignored: the pins were successfully set as outputs in New.
	d.pins.Tens.Out(gpio.Low)
	d.pins.Units.Out(gpio.Low)

	d.pins.Clock.Out(gpio.Low)
	d.pins.Latch.Out(gpio.Low)
	devices.Delay(d.clk, settle)

	d.shiftOut(pattern)

	d.pins.Latch.Out(gpio.High)
	devices.Delay(d.clk, settle)

	sel.Out(gpio.High)
	devices.Delay(d.clk, d.hold())
}

// hold returns a random digit on-time in whole microseconds.
func (d *Dev) hold() time.Duration {
	n := d.rnd.Int63n(int64(holdJitter/time.Microsecond) + 1)
	return holdMin + time.Duration(n)*time.Microsecond
}

// shiftOut clocks the 8 bits of v onto the data line, most significant bit first.
func (d *Dev) shiftOut(v byte) {
	for i := 0; i < 8; i++ {
		d.pins.Data.Out(gpio.Level(v&0x80 != 0))
		v <<= 1
		devices.Delay(d.clk, settle)
		d.pins.Clock.Out(gpio.High)
		devices.Delay(d.clk, settle)
		d.pins.Clock.Out(gpio.Low)
		devices.Delay(d.clk, settle)
	}
}

// blank turns both digits off and leaves the register clocks low.
func (d *Dev) blank() {
	d.pins.Tens.Out(gpio.Low)
	d.pins.Units.Out(gpio.Low)
	d.pins.Clock.Out(gpio.Low)
	d.pins.Latch.Out(gpio.Low)
}
