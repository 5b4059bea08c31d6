// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// The dht11 package reads an Aosong DHT11 humidity and temperature sensor over its single
// wire protocol.
//
// The host pulls the data line low for at least 18ms to request a reading and then releases
// it. The sensor answers with 80us low, 80us high and then sends 40 bits, each as a 50us low
// phase followed by a high phase of 26-28us for a 0 or 70us for a 1. A bit is decoded as 1
// when its high phase lasts longer than its low phase.
//
// The 40 bits are humidity integral and decimal bytes, temperature integral and decimal bytes
// and a checksum that is the 8-bit sum of the first four. A checksum mismatch is reported but
// the decoded reading is still returned.
//
// All waits on the line are bounded, a missing or disconnected sensor produces an error after
// at most ~20ms. A measurement busy-polls the pin for its whole duration and must not be run
// from a goroutine that cannot afford to block.
//
// Datasheet: https://www.mouser.com/datasheet/2/758/DHT11-Technical-Data-Sheet-Translated-Version-1143054.pdf
package dht11

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	devices "github.com/tve/pindevices"
)

const (
	startLow    = 20 * time.Millisecond   // host start signal, the sensor needs >=18ms
	lowTimeout  = 1000 * time.Microsecond // bound on waiting for the line to go low
	highTimeout = 100 * time.Microsecond  // bound on waiting for the line to go high
	frameBits   = 40
)

// Reading is a decoded frame.
type Reading struct {
	HumidityHigh    uint8 // relative humidity, integral part
	HumidityLow     uint8 // relative humidity, tenths
	TemperatureHigh uint8 // temperature in °C, integral part
	TemperatureLow  uint8 // temperature, tenths of °C
	Checksum        uint8 // as sent by the sensor
}

// decode splits a 40-bit frame into its fields.
func decode(frame uint64) Reading {
	return Reading{
		HumidityHigh:    uint8(frame >> 32),
		HumidityLow:     uint8(frame >> 24),
		TemperatureHigh: uint8(frame >> 16),
		TemperatureLow:  uint8(frame >> 8),
		Checksum:        uint8(frame),
	}
}

// Sum returns the checksum computed over the four data bytes.
func (r Reading) Sum() uint8 {
	return r.HumidityHigh + r.HumidityLow + r.TemperatureHigh + r.TemperatureLow
}

// Valid reports whether the checksum matches the data.
func (r Reading) Valid() bool {
	return r.Sum() == r.Checksum
}

// Temperature returns the temperature.
func (r Reading) Temperature() physic.Temperature {
	return physic.ZeroCelsius + physic.Temperature(r.TemperatureHigh)*physic.Celsius +
		physic.Temperature(r.TemperatureLow)*100*physic.MilliCelsius
}

// Humidity returns the relative humidity.
func (r Reading) Humidity() physic.RelativeHumidity {
	return physic.RelativeHumidity(r.HumidityHigh)*physic.PercentRH +
		physic.RelativeHumidity(r.HumidityLow)*physic.MilliRH
}

func (r Reading) String() string {
	return fmt.Sprintf("%d.%d°C %d.%d%%rH", r.TemperatureHigh, r.TemperatureLow,
		r.HumidityHigh, r.HumidityLow)
}

// Opts contains options used when initializing a Dev.
type Opts struct {
	Name   string            // label used in logs, defaults to "dht11"
	Clock  devices.Clock     // time source, defaults to the system clock
	Logger devices.LogPrintf // function to use for logging
}

// Dev is a DHT11 sensor on a bidirectional gpio pin with a pull-up.
type Dev struct {
	name string
	pin  gpio.PinIO
	clk  devices.Clock
	log  devices.LogPrintf
}

// New drives the data line high, which is the idle state of the bus.
func New(pin gpio.PinIO, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &Opts{}
	}
	if pin == nil {
		return nil, errors.Wrap(devices.ErrAcquire, "dht11: data pin missing")
	}
	d := &Dev{name: opts.Name, pin: pin, clk: opts.Clock}
	if d.name == "" {
		d.name = "dht11"
	}
	if d.clk == nil {
		d.clk = devices.SystemClock()
	}
	d.log = devices.Prefixed(opts.Logger, d.name+": ")
	if err := pin.Out(gpio.High); err != nil {
		return nil, errors.Wrapf(devices.ErrAcquire, "dht11: cannot drive %s: %v", pin, err)
	}
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("%s{%s}", d.name, d.pin)
}

// Halt implements conn.Resource. The sensor is idle between measurements.
func (d *Dev) Halt() error {
	return nil
}

// Measure performs a complete exchange with the sensor. Each call starts from scratch with a
// new start signal; the sensor needs about a second between measurements to return fresh
// data.
//
// If the frame's checksum does not match, the decoded reading is returned together with an
// error wrapping devices.ErrChecksum. A sensor that stops answering yields an error wrapping
// devices.ErrTimeout and a zero Reading.
func (d *Dev) Measure() (Reading, error) {
	d.log("start measure")
	frame, err := d.exchange()
	if err != nil {
		return Reading{}, err
	}
	r := decode(frame)
	if !r.Valid() {
		d.log("checksum mismatch: got %#02x, computed %#02x (%s)", r.Checksum, r.Sum(), r)
		return r, errors.Wrapf(devices.ErrChecksum, "dht11: got %#02x, computed %#02x",
			r.Checksum, r.Sum())
	}
	d.log("%s", r)
	return r, nil
}

// Sense implements the periph environment sensing convention, it fills in temperature and
// humidity. On a checksum mismatch e is filled and the error is returned.
func (d *Dev) Sense(e *physic.Env) error {
	r, err := d.Measure()
	if err != nil && !errors.Is(err, devices.ErrChecksum) {
		return err
	}
	e.Temperature = r.Temperature()
	e.Humidity = r.Humidity()
	return err
}

// exchange sends the start signal and samples the 40 bits of the answer. The line is always
// left driven high.
func (d *Dev) exchange() (uint64, error) {
	if err := d.pin.Out(gpio.Low); err != nil {
		return 0, errors.Wrap(err, "dht11: cannot send start signal")
	}
	devices.Delay(d.clk, startLow)
	d.pin.Out(gpio.High)
	if err := d.pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		d.pin.Out(gpio.High)
		return 0, errors.Wrap(err, "dht11: cannot release data line")
	}
	defer d.pin.Out(gpio.High)

	// Response: the sensor pulls low, then high, then low again to start the first bit.
	if _, err := devices.WaitFor(d.clk, d.pin, gpio.Low, lowTimeout); err != nil {
		return 0, errors.Wrap(err, "dht11: no response")
	}
	if _, err := devices.WaitFor(d.clk, d.pin, gpio.High, highTimeout); err != nil {
		return 0, errors.Wrap(err, "dht11: no response")
	}
	if _, err := devices.WaitFor(d.clk, d.pin, gpio.Low, lowTimeout); err != nil {
		return 0, errors.Wrap(err, "dht11: no response")
	}

	var frame uint64
	for i := 0; i < frameBits; i++ {
		frame <<= 1
		first, err := devices.WaitFor(d.clk, d.pin, gpio.High, highTimeout)
		if err != nil {
			return 0, errors.Wrapf(err, "dht11: bit %d", i)
		}
		second, err := devices.WaitFor(d.clk, d.pin, gpio.Low, lowTimeout)
		if err != nil {
			return 0, errors.Wrapf(err, "dht11: bit %d", i)
		}
		if first < second {
			frame |= 1
		}
	}

	// The sensor releases the line after a last low phase.
	if _, err := devices.WaitFor(d.clk, d.pin, gpio.High, highTimeout); err != nil {
		d.log("line not released after frame: %v", err)
	}
	return frame, nil
}
