// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// seg7 shows a two digit number on a 74HC595 driven seven segment display.
package main

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	devices "github.com/tve/pindevices"
	"github.com/tve/pindevices/chardev"
	"github.com/tve/pindevices/hc595"
	"github.com/tve/pindevices/internal/cli"
)

func mainImpl() error {
	var (
		debug    bool
		realtime bool
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "seg7 <data> <clock> <latch> <tens> <units> <NN>",
		Short: "Show a two digit number on a multiplexed seven segment display",
		Long: `seg7 drives a 74HC595 shift register feeding the segments of two common
cathode digits. The pins are named the way periph names them, e.g. GPIO17.

Examples:
  seg7 GPIO17 GPIO27 GPIO22 GPIO23 GPIO24 42
  seg7 --for 0 --realtime GPIO17 GPIO27 GPIO22 GPIO23 GPIO24 7`,
		Args:         cobra.ExactArgs(6),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			num := args[5]
			if len(num) == 0 || len(num) > 2 || strings.Trim(num, "0123456789") != "" {
				return errors.Wrapf(devices.ErrInvalidArgument, "%q is not a number between 0 and 99", num)
			}
			log, err := cli.NewLogger(debug)
			if err != nil {
				return err
			}
			defer log.Sync()
			if err := cli.Init(log); err != nil {
				return err
			}
			p, err := cli.Pins(args[:5]...)
			if err != nil {
				return err
			}
			d, err := hc595.New(hc595.Pins{Data: p[0], Clock: p[1], Latch: p[2], Tens: p[3], Units: p[4]},
				&hc595.Opts{Realtime: realtime, Logger: cli.DriverLogger(log, "seg7")})
			if err != nil {
				return err
			}
			if _, err := (chardev.Display{Dev: d}).Write([]byte(num)); err != nil {
				return err
			}
			d.Start()
			defer d.Halt()

			var timeout <-chan time.Time
			if duration > 0 {
				timeout = time.After(duration)
			}
			select {
			case <-timeout:
			case <-cli.Interrupted():
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "log driver activity")
	cmd.Flags().BoolVar(&realtime, "realtime", false, "refresh with realtime priority")
	cmd.Flags().DurationVar(&duration, "for", 5*time.Second, "how long to show the number, 0 until interrupted")
	return cmd.Execute()
}

func main() {
	if err := mainImpl(); err != nil {
		cli.Exit("seg7", err)
	}
}
