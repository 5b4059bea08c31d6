// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// The chardev package exposes each driver through a small byte-stream surface, the way the
// kernel drivers present them as character devices: writes carry ASCII digits or numbers,
// reads return one ASCII reading.
//
// The adapters implement io.ReaderAt and/or io.Writer; File wraps one of them and tracks the
// read offset like an open file descriptor so that io.ReadAll and friends terminate.
package chardev

import (
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	devices "github.com/tve/pindevices"
	"github.com/tve/pindevices/dht11"
	"github.com/tve/pindevices/hc595"
	"github.com/tve/pindevices/hcsr04"
	"github.com/tve/pindevices/pwmled"
)

// Display accepts up to two ASCII digits.
type Display struct {
	Dev *hc595.Dev
}

// Write sets the digits from p: two or more bytes set tens from p[0] and units from p[1], a
// single byte sets units and clears tens, an empty write clears both. Bytes that are not
// digits end up as the error glyph. It always consumes all of p.
func (d Display) Write(p []byte) (int, error) {
	var tens, units uint8
	switch {
	case len(p) >= 2:
		tens, units = p[0]-'0', p[1]-'0'
	case len(p) == 1:
		units = p[0] - '0'
	}
	d.Dev.SetDigits(tens, units)
	return len(p), nil
}

// ReadAt returns nothing.
func (d Display) ReadAt(p []byte, off int64) (int, error) {
	return 0, io.EOF
}

// Thermometer reads the integral temperature of a DHT11 in decimal ASCII.
type Thermometer struct {
	Dev *dht11.Dev
}

// ReadAt runs one measurement at offset 0, any later offset is the end of the stream. A
// checksum mismatch still produces the reading.
func (t Thermometer) ReadAt(p []byte, off int64) (int, error) {
	if off != 0 {
		return 0, io.EOF
	}
	r, err := t.Dev.Measure()
	if err != nil && !errors.Is(err, devices.ErrChecksum) {
		return 0, err
	}
	return copy(p, strconv.Itoa(int(r.TemperatureHigh))), nil
}

// Ranger reads one HC-SR04 distance line.
type Ranger struct {
	Dev *hcsr04.Dev
}

// ReadAt runs one measurement at offset 0 and returns "Distance : D.d\n". A failed
// measurement returns its error and no bytes.
func (r Ranger) ReadAt(p []byte, off int64) (int, error) {
	if off != 0 {
		return 0, io.EOF
	}
	v, err := r.Dev.Measure()
	if err != nil {
		return 0, err
	}
	return copy(p, hcsr04.Format(v)), nil
}

// maxDutyInput is the longest duty cycle string accepted by Dimmer.
const maxDutyInput = 9

// Dimmer accepts a duty cycle percentage in decimal ASCII.
type Dimmer struct {
	Dev *pwmled.Dev
}

// Write parses the first maxDutyInput bytes of p, without a trailing newline, as a
// percentage and applies it. Nothing is applied if parsing fails.
func (d Dimmer) Write(p []byte) (int, error) {
	s := p
	if len(s) > maxDutyInput {
		s = s[:maxDutyInput]
	}
	str := strings.TrimSuffix(string(s), "\n")
	percent, err := strconv.Atoi(str)
	if err != nil {
		return 0, errors.Wrapf(devices.ErrInvalidArgument, "pwmled: cannot parse %q", str)
	}
	if err := d.Dev.SetDutyPercent(percent); err != nil {
		return 0, err
	}
	return len(p), nil
}

// ReadAt returns nothing.
func (d Dimmer) ReadAt(p []byte, off int64) (int, error) {
	return 0, io.EOF
}
