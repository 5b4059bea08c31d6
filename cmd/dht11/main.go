// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// dht11 reads the temperature and humidity from a DHT11 sensor.
package main

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/physic"

	devices "github.com/tve/pindevices"
	"github.com/tve/pindevices/dht11"
	"github.com/tve/pindevices/internal/cli"
)

// minInterval is the time the sensor needs between two measurements.
const minInterval = time.Second

func mainImpl() error {
	var (
		debug    bool
		count    int
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:          "dht11 <pin>",
		Short:        "Read a DHT11 temperature and humidity sensor",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval < minInterval {
				return errors.Wrapf(devices.ErrInvalidArgument, "interval must be at least %s", minInterval)
			}
			log, err := cli.NewLogger(debug)
			if err != nil {
				return err
			}
			defer log.Sync()
			if err := cli.Init(log); err != nil {
				return err
			}
			p, err := cli.Pins(args[0])
			if err != nil {
				return err
			}
			d, err := dht11.New(p[0], &dht11.Opts{Logger: cli.DriverLogger(log, "dht11")})
			if err != nil {
				return err
			}
			defer d.Halt()
			for i := 0; i < count; i++ {
				if i > 0 {
					time.Sleep(interval)
				}
				var e physic.Env
				err := d.Sense(&e)
				switch {
				case errors.Is(err, devices.ErrChecksum):
					log.Warnf("%v", err)
				case err != nil:
					return err
				}
				fmt.Printf("Temperature: %s Humidity: %s\n", e.Temperature, e.Humidity)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "log driver activity")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of measurements")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "time between measurements")
	return cmd.Execute()
}

func main() {
	if err := mainImpl(); err != nil {
		cli.Exit("dht11", err)
	}
}
