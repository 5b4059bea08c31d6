// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// hcsr04 measures distances with an HC-SR04 ultrasonic module.
package main

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tve/pindevices/chardev"
	"github.com/tve/pindevices/hcsr04"
	"github.com/tve/pindevices/internal/cli"
)

func mainImpl() error {
	var (
		debug    bool
		count    int
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:          "hcsr04 <trigger> <echo>",
		Short:        "Measure a distance with an HC-SR04 ultrasonic module",
		Long:         "hcsr04 prints one \"Distance : D.d\" line per measurement, in centimetres.",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := cli.NewLogger(debug)
			if err != nil {
				return err
			}
			defer log.Sync()
			if err := cli.Init(log); err != nil {
				return err
			}
			p, err := cli.Pins(args...)
			if err != nil {
				return err
			}
			d, err := hcsr04.New(p[0], p[1], &hcsr04.Opts{Logger: cli.DriverLogger(log, "hcsr04")})
			if err != nil {
				return err
			}
			defer d.Halt()
			for i := 0; i < count; i++ {
				if i > 0 {
					time.Sleep(interval)
				}
				if _, err := io.Copy(os.Stdout, chardev.Open(chardev.Ranger{Dev: d})); err != nil {
					return errors.Wrapf(err, "measurement %d", i+1)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "log driver activity")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of measurements")
	cmd.Flags().DurationVar(&interval, "interval", 100*time.Millisecond, "time between measurements")
	return cmd.Execute()
}

func main() {
	if err := mainImpl(); err != nil {
		cli.Exit("hcsr04", err)
	}
}
