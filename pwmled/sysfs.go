// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package pwmled

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// SysfsRoot is where the kernel exposes PWM chips.
var SysfsRoot = "/sys/class/pwm"

// SysfsOutput is one channel of a Linux PWM chip, controlled through its period, duty_cycle
// and enable attributes.
type SysfsOutput struct {
	dir  string
	cur  State
	read bool // cur reflects the attributes
}

// OpenSysfs exports channel of pwmchip<chip> if needed and returns an Output for it.
func OpenSysfs(chip, channel int) (*SysfsOutput, error) {
	chipDir := filepath.Join(SysfsRoot, fmt.Sprintf("pwmchip%d", chip))
	dir := filepath.Join(chipDir, fmt.Sprintf("pwm%d", channel))
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := writeAttr(chipDir, "export", uint64(channel)); err != nil {
			return nil, errors.Wrapf(err, "pwmled: cannot export pwm%d of pwmchip%d", channel, chip)
		}
	}
	return NewSysfs(dir), nil
}

// NewSysfs returns an Output for an already exported channel directory.
func NewSysfs(dir string) *SysfsOutput {
	o := &SysfsOutput{dir: dir}
	if s, err := o.readState(); err == nil {
		o.cur, o.read = s, true
	}
	return o
}

func (o *SysfsOutput) String() string {
	return o.dir
}

// Apply implements Output. The kernel rejects a duty cycle longer than the period, so the
// attributes are written in the order that keeps duty <= period at every step. If any write
// fails the previous state is written back.
func (o *SysfsOutput) Apply(s State) error {
	if s.Duty > s.Period {
		return errors.Errorf("pwmled: duty %dns exceeds period %dns", s.Duty, s.Period)
	}
	if err := o.write(o.cur, s); err != nil {
		if o.read {
			err = multierr.Append(err, o.write(s, o.cur))
		}
		return err
	}
	o.cur, o.read = s, true
	return nil
}

type attrValue struct {
	attr string
	v    uint64
}

// write moves the attributes from state from to state to.
func (o *SysfsOutput) write(from, to State) error {
	steps := []attrValue{{"period", to.Period}, {"duty_cycle", to.Duty}, {"enable", 0}}
	if to.Period < from.Period {
		steps[0], steps[1] = steps[1], steps[0]
	}
	if to.Enabled {
		steps[2].v = 1
	}
	for _, st := range steps {
		if err := writeAttr(o.dir, st.attr, st.v); err != nil {
			return err
		}
	}
	return nil
}

func (o *SysfsOutput) readState() (State, error) {
	var s State
	var en uint64
	for _, a := range []struct {
		attr string
		v    *uint64
	}{{"period", &s.Period}, {"duty_cycle", &s.Duty}, {"enable", &en}} {
		b, err := os.ReadFile(filepath.Join(o.dir, a.attr))
		if err != nil {
			return State{}, errors.Wrap(err, "pwmled")
		}
		if *a.v, err = strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64); err != nil {
			return State{}, errors.Wrapf(err, "pwmled: %s", a.attr)
		}
	}
	s.Enabled = en != 0
	return s, nil
}

func writeAttr(dir, attr string, v uint64) error {
	p := filepath.Join(dir, attr)
	if err := os.WriteFile(p, []byte(strconv.FormatUint(v, 10)), 0o644); err != nil {
		return errors.Wrapf(err, "pwmled: write %s", p)
	}
	return nil
}
