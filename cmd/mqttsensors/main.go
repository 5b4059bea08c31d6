// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// mqttsensors publishes the readings of the configured sensors to an MQTT broker and drives
// the configured displays and LEDs from MQTT messages.
//
// Readings are published as JSON on <prefix>/<device> every poll interval. A message on
// <prefix>/<device>/set is written to a display ("42") or an LED ("75") and the new state is
// published on <prefix>/<device>.
package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	devices "github.com/tve/pindevices"
	"github.com/tve/pindevices/devconf"
	"github.com/tve/pindevices/internal/cli"
)

func mainImpl() error {
	var (
		debug    bool
		confPath string
	)
	cmd := &cobra.Command{
		Use:          "mqttsensors --config <file.yaml>",
		Short:        "Bridge gpio sensors, displays and LEDs to MQTT",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := devconf.Load(confPath)
			if err != nil {
				return err
			}
			if err := cfg.MQTT.Validate("mqtt"); err != nil {
				return err
			}
			log, err := cli.NewLogger(debug)
			if err != nil {
				return err
			}
			defer log.Sync()
			if err := cli.Init(log); err != nil {
				return err
			}

			devs, err := devconf.Build(cfg, &devconf.BuildOpts{
				Logger: func(name string) devices.LogPrintf { return cli.DriverLogger(log, name) },
			})
			for _, e := range multierr.Errors(err) {
				log.Errorf("%v", e)
			}
			defer func() {
				if err := devs.Close(); err != nil {
					log.Warnf("shutdown: %v", err)
				}
			}()
			if devs.Len() == 0 {
				return errors.New("no device could be initialized")
			}
			log.Infof("%d devices ready", devs.Len())

			m, err := newMQ(cfg.MQTT, log.Named("mqtt"))
			if err != nil {
				return err
			}
			defer m.Close()
			g := newGateway(m, cfg.MQTT.Prefix, devs, log)
			if err := g.subscribe(); err != nil {
				return err
			}
			g.run(cfg.Poll, cli.Interrupted())
			log.Infof("exiting")
			return nil
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "log driver activity")
	cmd.Flags().StringVarP(&confPath, "config", "c", "mqttsensors.yaml", "configuration file")
	return cmd.Execute()
}

func main() {
	if err := mainImpl(); err != nil {
		cli.Exit("mqttsensors", err)
	}
}
