// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package devicestest provides a simulated clock and scripted gpio pins to test the drivers
// without hardware.
//
// Time only moves when a driver sleeps or reads a pin: Sleep advances the Clock by the
// requested duration and every Pin.Read advances it by the pin's ReadCost. This keeps the
// microsecond-scale busy polls of the drivers deterministic.
package devicestest

import (
	"runtime"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// Clock is a simulated monotonic clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock starting at the Unix epoch.
func NewClock() *Clock {
	return &Clock{now: time.Unix(0, 0)}
}

// Now returns the simulated time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep advances the simulated time by d and yields the processor so goroutines polling the
// clock from a test get a chance to run.
func (c *Clock) Sleep(d time.Duration) {
	c.Advance(d)
	runtime.Gosched()
}

// Advance moves the simulated time forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Event is one write to an output pin.
type Event struct {
	Pin string
	L   gpio.Level
	At  time.Time
}

// Recorder keeps the writes of a set of pins in the order they happened.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Events returns a copy of the recorded writes.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Len returns the number of recorded writes.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Pulse is a level held for a duration.
type Pulse struct {
	L gpio.Level
	D time.Duration
}

// Waveform is a sequence of pulses followed by an idle level that holds forever.
type Waveform struct {
	Pulses []Pulse
	Idle   gpio.Level
}

// At returns the level of the waveform t after it started.
func (w *Waveform) At(t time.Duration) gpio.Level {
	for _, p := range w.Pulses {
		if t < p.D {
			return p.L
		}
		t -= p.D
	}
	return w.Idle
}

// Length returns the duration of all the pulses.
func (w *Waveform) Length() time.Duration {
	var d time.Duration
	for _, p := range w.Pulses {
		d += p.D
	}
	return d
}

// Pin is a simulated gpio.PinIO.
//
// Writes are recorded into Rec, if set. When Wave is set an input pin plays it back once armed,
// either by switching the pin to input (ArmOnIn) or by calling Arm, typically from another
// pin's OnOut hook. Reads of an unarmed pin return the last level written or pulled.
type Pin struct {
	gpiotest.Pin

	Clock    *Clock
	ReadCost time.Duration // simulated time consumed by each Read
	Rec      *Recorder
	Wave     *Waveform
	ArmOnIn  bool
	OnOut    func(l gpio.Level) // called after every successful Out
	OutErr   error              // returned by Out instead of writing, if set

	mu      sync.Mutex
	armedAt time.Time
	armed   bool
	input   bool
	reads   int
}

// NewPin returns a pin named name using clock c, with a read cost of one microsecond.
func NewPin(name string, c *Clock) *Pin {
	return &Pin{Pin: gpiotest.Pin{N: name}, Clock: c, ReadCost: time.Microsecond}
}

// Arm starts the playback of the waveform at the current simulated time.
func (p *Pin) Arm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.armedAt = p.Clock.Now()
	p.armed = true
}

// IsInput reports whether the last configuration call was In.
func (p *Pin) IsInput() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.input
}

// Reads returns how many times the pin was read.
func (p *Pin) Reads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads
}

// In implements gpio.PinIn.
func (p *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	if err := p.Pin.In(pull, edge); err != nil {
		return err
	}
	p.mu.Lock()
	p.input = true
	p.mu.Unlock()
	if p.ArmOnIn && p.Wave != nil {
		p.Arm()
	}
	return nil
}

// Read implements gpio.PinIn.
func (p *Pin) Read() gpio.Level {
	if p.ReadCost > 0 {
		p.Clock.Advance(p.ReadCost)
	}
	p.mu.Lock()
	p.reads++
	armed, at, input := p.armed, p.armedAt, p.input
	p.mu.Unlock()
	if armed && input && p.Wave != nil {
		return p.Wave.At(p.Clock.Now().Sub(at))
	}
	return p.Pin.Read()
}

// Out implements gpio.PinOut.
func (p *Pin) Out(l gpio.Level) error {
	if p.OutErr != nil {
		return p.OutErr
	}
	if err := p.Pin.Out(l); err != nil {
		return err
	}
	p.mu.Lock()
	p.input = false
	p.mu.Unlock()
	if p.Rec != nil {
		p.Rec.add(Event{Pin: p.N, L: l, At: p.Clock.Now()})
	}
	if p.OnOut != nil {
		p.OnOut(l)
	}
	return nil
}
