// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package devicestest

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

const us = time.Microsecond

// DHT11Response returns what a DHT11 puts on its data line once the host releases it: the
// pull-up for 30us, the 80us low/80us high response, 40 bits of 50us low followed by 26us
// (0) or 70us (1) high, and a final 50us low before the line idles high.
func DHT11Response(frame [5]byte) *Waveform {
	w := &Waveform{
		Pulses: []Pulse{{gpio.High, 30 * us}, {gpio.Low, 80 * us}, {gpio.High, 80 * us}},
		Idle:   gpio.High,
	}
	for _, b := range frame {
		for i := 7; i >= 0; i-- {
			high := 26 * us
			if b&(1<<uint(i)) != 0 {
				high = 70 * us
			}
			w.Pulses = append(w.Pulses, Pulse{gpio.Low, 50 * us}, Pulse{gpio.High, high})
		}
	}
	w.Pulses = append(w.Pulses, Pulse{gpio.Low, 50 * us})
	return w
}

// NewDHT11 returns a data pin that answers every start signal with DHT11Response(frame).
func NewDHT11(name string, c *Clock, frame [5]byte) *Pin {
	p := NewPin(name, c)
	p.Wave = DHT11Response(frame)
	p.ArmOnIn = true
	return p
}

// Echo returns an HC-SR04 echo line that stays low for delay after the trigger and then
// high for width.
func Echo(delay, width time.Duration) *Waveform {
	return &Waveform{Pulses: []Pulse{{gpio.Low, delay}, {gpio.High, width}}, Idle: gpio.Low}
}

// NewRanger returns a trigger and an echo pin; every falling edge of the trigger starts the
// playback of w on the echo pin.
func NewRanger(c *Clock, w *Waveform) (trigger, echo *Pin) {
	trigger = NewPin("trig", c)
	echo = NewPin("echo", c)
	echo.Wave = w
	trigger.OnOut = func(l gpio.Level) {
		if l == gpio.Low {
			echo.Arm()
		}
	}
	return trigger, echo
}
