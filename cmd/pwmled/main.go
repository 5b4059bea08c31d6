// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// pwmled sets the brightness of a PWM dimmed LED.
package main

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	devices "github.com/tve/pindevices"
	"github.com/tve/pindevices/internal/cli"
	"github.com/tve/pindevices/pwmled"
)

func mainImpl() error {
	var (
		debug   bool
		halt    bool
		soft    bool
		chip    int
		channel int
	)
	cmd := &cobra.Command{
		Use:   "pwmled [<pin>] <percent>",
		Short: "Set the duty cycle of a PWM dimmed LED",
		Long: `pwmled drives a 1kHz PWM signal either on a gpio pin with hardware PWM support or
on a channel of a Linux PWM chip (--chip, --channel). The output keeps running after the
command exits. With --soft the PWM signal is generated in software on any gpio pin until
the command is interrupted.

Examples:
  pwmled GPIO18 25
  pwmled --chip 0 --channel 1 80
  pwmled --chip 0 --channel 1 --halt
  pwmled --soft GPIO25 10`,
		Args:         cobra.RangeArgs(0, 2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			sysfs := cmd.Flags().Changed("chip")
			if sysfs && soft {
				return errors.Wrap(devices.ErrInvalidArgument, "--soft needs a pin, not a PWM chip")
			}
			want := 2
			if sysfs {
				want = 1
			}
			if halt {
				want--
			}
			if len(args) != want {
				return errors.Wrapf(devices.ErrInvalidArgument, "expected %d arguments, got %d", want, len(args))
			}
			percent := 0
			if !halt {
				s := args[len(args)-1]
				if percent, err = strconv.Atoi(s); err != nil {
					return errors.Wrapf(devices.ErrInvalidArgument, "cannot parse %q", s)
				}
				if _, err := pwmled.StateFor(percent); err != nil {
					return err
				}
			}
			log, err := cli.NewLogger(debug)
			if err != nil {
				return err
			}
			defer log.Sync()

			var out pwmled.Output
			if sysfs {
				o, err := pwmled.OpenSysfs(chip, channel)
				if err != nil {
					return err
				}
				out = o
			} else {
				if err := cli.Init(log); err != nil {
					return err
				}
				p, err := cli.Pins(args[0])
				if err != nil {
					return err
				}
				if soft {
					out = pwmled.NewBitBang(p[0], nil)
				} else {
					out = &pwmled.PinOutput{Pin: p[0]}
				}
			}
			d, err := pwmled.New(out, &pwmled.Opts{Logger: cli.DriverLogger(log, "pwmled")})
			if err != nil {
				return err
			}
			if halt {
				return d.Halt()
			}
			if err := d.SetDutyPercent(percent); err != nil || !soft {
				return err
			}
			<-cli.Interrupted()
			return d.Halt()
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "log driver activity")
	cmd.Flags().BoolVar(&halt, "halt", false, "disable the output")
	cmd.Flags().BoolVar(&soft, "soft", false, "generate the PWM signal in software")
	cmd.Flags().IntVar(&chip, "chip", 0, "sysfs PWM chip number")
	cmd.Flags().IntVar(&channel, "channel", 0, "sysfs PWM channel of the chip")
	return cmd.Execute()
}

func main() {
	if err := mainImpl(); err != nil {
		cli.Exit("pwmled", err)
	}
}
