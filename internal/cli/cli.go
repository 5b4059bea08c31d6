// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package cli holds the plumbing shared by the commands: logging, host initialization and
// pin lookup.
package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/host/v3"

	devices "github.com/tve/pindevices"
)

// NewLogger returns a development logger with debug output when debug is set, a production
// logger otherwise.
func NewLogger(debug bool) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.DisableStacktrace = true
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "cannot build logger")
	}
	return l.Sugar(), nil
}

// DriverLogger returns the LogPrintf handed to a driver: debug messages from a logger named
// after the device.
func DriverLogger(l *zap.SugaredLogger, device string) devices.LogPrintf {
	return l.Named(device).Debugf
}

// Init loads the periph host drivers and logs which ones came up.
func Init(l *zap.SugaredLogger) error {
	state, err := host.Init()
	if err != nil {
		return errors.Wrap(err, "cannot initialize host drivers")
	}
	for _, d := range state.Loaded {
		l.Debugf("loaded host driver %s", d)
	}
	for _, f := range state.Failed {
		l.Debugf("host driver %s failed: %v", f.D, f.Err)
	}
	return nil
}

// Pins opens the named pins in order.
func Pins(names ...string) ([]gpio.PinIO, error) {
	pins := make([]gpio.PinIO, 0, len(names))
	for _, n := range names {
		p, err := devices.OpenPin(n)
		if err != nil {
			return nil, err
		}
		pins = append(pins, p)
	}
	return pins, nil
}

// Interrupted returns a channel that is closed on SIGINT or SIGTERM.
func Interrupted() <-chan struct{} {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		<-sig
		signal.Stop(sig)
		close(done)
	}()
	return done
}

// Exit prints err prefixed with the command name and exits with status 1.
func Exit(cmd string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %s.\n", cmd, err)
	os.Exit(1)
}
