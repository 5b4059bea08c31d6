// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package devices

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
)

// Clock is the monotonic time source and sleep primitive used by the drivers. The clock from
// github.com/benbjohnson/clock satisfies it.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock returns the real clock.
func SystemClock() Clock {
	return clock.New()
}

// Delay blocks for at least d. All protocol delays go through here so a simulated clock can
// stand in for real time.
func Delay(c Clock, d time.Duration) {
	if d <= 0 {
		return
	}
	c.Sleep(d)
}

// WaitFor busy-polls p until it reads level and returns how long that took. If the pin is
// still at the other level once more than timeout has elapsed it gives up and returns the
// elapsed time together with ErrTimeout.
// The poll never yields the CPU.
func WaitFor(c Clock, p gpio.PinIn, level gpio.Level, timeout time.Duration) (time.Duration, error) {
	start := c.Now()
	for {
		if p.Read() == level {
			return c.Now().Sub(start), nil
		}
		if elapsed := c.Now().Sub(start); elapsed > timeout {
			return elapsed, errors.Wrapf(ErrTimeout, "%s did not go %s within %s", p, level, timeout)
		}
	}
}
