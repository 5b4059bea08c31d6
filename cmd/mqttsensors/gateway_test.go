// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package main

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.viam.com/test"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/tve/pindevices/devconf"
	"github.com/tve/pindevices/devicestest"
	"github.com/tve/pindevices/dht11"
	"github.com/tve/pindevices/hc595"
	"github.com/tve/pindevices/hcsr04"
	"github.com/tve/pindevices/pwmled"
)

type message struct {
	topic   string
	payload interface{}
}

type fakeBroker struct {
	mu   sync.Mutex
	pubs []message
	subs map[string]func(topic string, payload []byte)
}

func (b *fakeBroker) Publish(topic string, payload interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pubs = append(b.pubs, message{topic, payload})
	return nil
}

func (b *fakeBroker) Subscribe(topic string, fn func(topic string, payload []byte)) error {
	if b.subs == nil {
		b.subs = map[string]func(string, []byte){}
	}
	b.subs[topic] = fn
	return nil
}

func (b *fakeBroker) deliver(topic, payload string) {
	b.subs[topic](topic, []byte(payload))
}

func (b *fakeBroker) take() []message {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.pubs
	b.pubs = nil
	return p
}

func testDevices(t *testing.T, echo *devicestest.Waveform) *devconf.Devices {
	t.Helper()
	devs := &devconf.Devices{
		Displays:     map[string]*hc595.Dev{},
		Thermometers: map[string]*dht11.Dev{},
		Rangers:      map[string]*hcsr04.Dev{},
		Dimmers:      map[string]*pwmled.Dev{},
	}

	clk := devicestest.NewClock()
	th, err := dht11.New(devicestest.NewDHT11("GPIO4", clk, [5]byte{45, 0, 23, 4, 72}), &dht11.Opts{Clock: clk})
	test.That(t, err, test.ShouldBeNil)
	devs.Thermometers["climate"] = th

	clk = devicestest.NewClock()
	trig, e := devicestest.NewRanger(clk, echo)
	r, err := hcsr04.New(trig, e, &hcsr04.Opts{Clock: clk})
	test.That(t, err, test.ShouldBeNil)
	devs.Rangers["level"] = r

	clk = devicestest.NewClock()
	disp, err := hc595.New(hc595.Pins{
		Data:  devicestest.NewPin("data", clk),
		Clock: devicestest.NewPin("clk", clk),
		Latch: devicestest.NewPin("latch", clk),
		Tens:  devicestest.NewPin("tens", clk),
		Units: devicestest.NewPin("units", clk),
	}, &hc595.Opts{Clock: clk})
	test.That(t, err, test.ShouldBeNil)
	devs.Displays["counter"] = disp

	lamp, err := pwmled.New(&pwmled.PinOutput{Pin: &gpiotest.Pin{N: "PWM0"}}, nil)
	test.That(t, err, test.ShouldBeNil)
	devs.Dimmers["lamp"] = lamp
	return devs
}

func TestPoll(t *testing.T) {
	b := &fakeBroker{}
	g := newGateway(b, "garage/", testDevices(t, devicestest.Echo(200*time.Microsecond, 1000*time.Microsecond)),
		zap.NewNop().Sugar())
	g.poll()
	test.That(t, b.take(), test.ShouldResemble, []message{
		{"garage/climate", climate{Temperature: 23.4, Humidity: 45, Valid: true}},
		{"garage/level", distance{170, "Distance : 17.0"}},
	})

	// The DHT11 needs a second between measurements.
	g.poll()
	test.That(t, b.take(), test.ShouldResemble, []message{
		{"garage/level", distance{170, "Distance : 17.0"}},
	})
}

func TestPollFailedMeasurement(t *testing.T) {
	b := &fakeBroker{}
	g := newGateway(b, "garage", testDevices(t, &devicestest.Waveform{Idle: gpio.Low}), zap.NewNop().Sugar())
	g.poll()
	msgs := b.take()
	test.That(t, len(msgs), test.ShouldEqual, 1)
	test.That(t, msgs[0].topic, test.ShouldEqual, "garage/climate")
}

func TestSet(t *testing.T) {
	b := &fakeBroker{}
	devs := testDevices(t, devicestest.Echo(0, 0))
	g := newGateway(b, "garage", devs, zap.NewNop().Sugar())
	test.That(t, g.subscribe(), test.ShouldBeNil)
	test.That(t, len(b.subs), test.ShouldEqual, 2)

	b.deliver("garage/counter/set", "42")
	tens, units := devs.Displays["counter"].Digits()
	test.That(t, tens, test.ShouldEqual, 4)
	test.That(t, units, test.ShouldEqual, 2)

	b.deliver("garage/lamp/set", "75\n")
	test.That(t, devs.Dimmers["lamp"].DutyPercent(), test.ShouldEqual, 75)
	test.That(t, b.take(), test.ShouldResemble, []message{
		{"garage/counter", digits{4, 2}},
		{"garage/lamp", duty{75}},
	})

	b.deliver("garage/lamp/set", "bright")
	b.deliver("garage/lamp/set", "120")
	test.That(t, devs.Dimmers["lamp"].DutyPercent(), test.ShouldEqual, 75)
	test.That(t, len(b.take()), test.ShouldEqual, 0)
}

func TestRunPublishesOutputs(t *testing.T) {
	b := &fakeBroker{}
	devs := testDevices(t, devicestest.Echo(200*time.Microsecond, 1000*time.Microsecond))
	g := newGateway(b, "garage", devs, zap.NewNop().Sugar())
	done := make(chan struct{})
	close(done)
	g.run(time.Hour, done)
	msgs := b.take()
	test.That(t, len(msgs), test.ShouldEqual, 4)
	test.That(t, msgs[0], test.ShouldResemble, message{"garage/counter", digits{0, 0}})
	test.That(t, msgs[1], test.ShouldResemble, message{"garage/lamp", duty{pwmled.DefaultPercent}})
}
