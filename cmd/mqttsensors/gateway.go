// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package main

import (
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"periph.io/x/conn/v3/physic"

	devices "github.com/tve/pindevices"
	"github.com/tve/pindevices/chardev"
	"github.com/tve/pindevices/devconf"
	"github.com/tve/pindevices/hcsr04"
)

// dht11Interval is the minimum time a DHT11 needs between two measurements.
const dht11Interval = time.Second

// Payloads published on <prefix>/<device>.
type (
	climate struct {
		Temperature float64 `json:"temperature"` // °C
		Humidity    float64 `json:"humidity"`    // %RH
		Valid       bool    `json:"valid"`       // checksum matched
	}
	distance struct {
		Millimetres int64  `json:"distance_mm"`
		Text        string `json:"text"`
	}
	digits struct {
		Tens  uint8 `json:"tens"`
		Units uint8 `json:"units"`
	}
	duty struct {
		Percent int `json:"duty"`
	}
)

// gateway publishes sensor readings and applies the values received for the outputs.
type gateway struct {
	b        broker
	prefix   string
	devs     *devconf.Devices
	log      *zap.SugaredLogger
	limiters map[string]*rate.Limiter // per thermometer
}

func newGateway(b broker, prefix string, devs *devconf.Devices, log *zap.SugaredLogger) *gateway {
	g := &gateway{
		b:        b,
		prefix:   strings.TrimSuffix(prefix, "/"),
		devs:     devs,
		log:      log,
		limiters: map[string]*rate.Limiter{},
	}
	for n := range devs.Thermometers {
		g.limiters[n] = rate.NewLimiter(rate.Every(dht11Interval), 1)
	}
	return g
}

func (g *gateway) topic(device string) string {
	return g.prefix + "/" + device
}

// subscribe listens on <prefix>/<device>/set for every display and dimmer. The payload is
// written as is to the device's byte-stream surface.
func (g *gateway) subscribe() error {
	var names []string
	for n := range g.devs.Displays {
		names = append(names, n)
	}
	for n := range g.devs.Dimmers {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		n := n
		if err := g.b.Subscribe(g.topic(n)+"/set", func(topic string, payload []byte) {
			if err := g.set(n, payload); err != nil {
				g.log.Warnf("%s: %v", topic, err)
			}
		}); err != nil {
			return err
		}
	}
	return nil
}

// set writes payload to the named output and publishes its new state.
func (g *gateway) set(name string, payload []byte) error {
	node, ok := g.devs.Node(name)
	if !ok {
		return errors.Errorf("no device %q", name)
	}
	if _, err := chardev.Open(node).Write(payload); err != nil {
		return err
	}
	return g.publishOutput(name)
}

func (g *gateway) publishOutput(name string) error {
	if d, ok := g.devs.Displays[name]; ok {
		t, u := d.Digits()
		return g.b.Publish(g.topic(name), digits{t, u})
	}
	if d, ok := g.devs.Dimmers[name]; ok {
		return g.b.Publish(g.topic(name), duty{d.DutyPercent()})
	}
	return errors.Errorf("%q is not an output", name)
}

// poll measures every sensor once and publishes the readings. Thermometers polled faster
// than the sensor allows are skipped. Failed measurements are logged.
func (g *gateway) poll() {
	for _, n := range sortedKeys(g.devs.Thermometers) {
		if !g.limiters[n].Allow() {
			g.log.Debugf("%s: skipped, polled too fast", n)
			continue
		}
		var e physic.Env
		err := g.devs.Thermometers[n].Sense(&e)
		if err != nil && !errors.Is(err, devices.ErrChecksum) {
			g.log.Warnf("%s: %v", n, err)
			continue
		}
		c := climate{
			Temperature: float64(e.Temperature-physic.ZeroCelsius) / float64(physic.Celsius),
			Humidity:    float64(e.Humidity) / float64(physic.PercentRH),
			Valid:       err == nil,
		}
		g.publish(n, c)
	}
	for _, n := range sortedKeys(g.devs.Rangers) {
		mm, err := g.devs.Rangers[n].Measure()
		if err != nil {
			g.log.Warnf("%s: %v", n, err)
			continue
		}
		g.publish(n, distance{mm, strings.TrimSuffix(hcsr04.Format(mm), "\n")})
	}
}

func (g *gateway) publish(name string, payload interface{}) {
	if err := g.b.Publish(g.topic(name), payload); err != nil {
		g.log.Warnf("%s: %v", name, err)
	}
}

// run publishes the state of the outputs, then polls every interval until done is closed.
func (g *gateway) run(interval time.Duration, done <-chan struct{}) {
	for _, n := range append(sortedKeys(g.devs.Displays), sortedKeys(g.devs.Dimmers)...) {
		if err := g.publishOutput(n); err != nil {
			g.log.Warnf("%s: %v", n, err)
		}
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	g.poll()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			g.poll()
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
