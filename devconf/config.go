// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// The devconf package describes which devices are attached to which pins and builds them.
//
// A configuration is a YAML file:
//
//	mqtt:
//	  host: localhost
//	  prefix: garage
//	poll: 5s
//	devices:
//	  - name: counter
//	    type: hc595
//	    realtime: true
//	    pins: {data: GPIO17, clock: GPIO27, latch: GPIO22, tens: GPIO23, units: GPIO24}
//	  - name: climate
//	    type: dht11
//	    pins: {data: GPIO4}
//	  - name: level
//	    type: hcsr04
//	    pins: {trigger: GPIO5, echo: GPIO6}
//	  - name: lamp
//	    type: pwmled
//	    pwm: {chip: 0, channel: 1}
//	  - name: status
//	    type: pwmled
//	    software: true
//	    pins: {out: GPIO25}
package devconf

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	devices "github.com/tve/pindevices"
)

// Device types.
const (
	TypeDisplay     = "hc595"
	TypeThermometer = "dht11"
	TypeRanger      = "hcsr04"
	TypeDimmer      = "pwmled"
)

// Defaults applied by Parse.
const (
	DefaultPoll     = 2 * time.Second
	DefaultMQTTPort = 1883
	DefaultPrefix   = "pindevices"
)

// requiredPins lists the pin keys each device type needs. A pwmled needs "out" only when it
// has no pwm section.
var requiredPins = map[string][]string{
	TypeDisplay:     {"data", "clock", "latch", "tens", "units"},
	TypeThermometer: {"data"},
	TypeRanger:      {"trigger", "echo"},
	TypeDimmer:      {"out"},
}

// Config is the top level of a configuration file.
type Config struct {
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Poll    time.Duration `yaml:"poll"`
	Devices []Device      `yaml:"devices"`
}

// MQTTConfig is the broker used by mqttsensors.
type MQTTConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	ClientID string `yaml:"client_id"`
	Prefix   string `yaml:"prefix"` // topic prefix
}

// Device is one device instance.
type Device struct {
	Name     string            `yaml:"name"`
	Type     string            `yaml:"type"`
	Pins     map[string]string `yaml:"pins"`
	PWM      *PWMConfig        `yaml:"pwm"`
	Realtime bool              `yaml:"realtime"` // hc595 only
	Software bool              `yaml:"software"` // pwmled only: bit-bang PWM on the out pin
}

// PWMConfig selects a channel of a Linux PWM chip.
type PWMConfig struct {
	Chip    int `yaml:"chip"`
	Channel int `yaml:"channel"`
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "devconf")
	}
	cfg, err := Parse(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return cfg, nil
}

// Parse decodes a YAML configuration, applies the defaults and validates it.
func Parse(buf []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, errors.Wrap(err, "devconf: cannot parse config")
	}
	cfg.setDefaults()
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) setDefaults() {
	if cfg.Poll == 0 {
		cfg.Poll = DefaultPoll
	}
	if cfg.MQTT.Port == 0 {
		cfg.MQTT.Port = DefaultMQTTPort
	}
	if cfg.MQTT.Prefix == "" {
		cfg.MQTT.Prefix = DefaultPrefix
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.Poll < 0 {
		return invalidField(path, "poll", "must not be negative")
	}
	names := map[string]bool{}
	for idx, d := range cfg.Devices {
		if err := d.Validate(join(path, fmt.Sprintf("devices.%d", idx))); err != nil {
			return err
		}
		if names[d.Name] {
			return invalidField(join(path, fmt.Sprintf("devices.%d", idx)), "name",
				fmt.Sprintf("duplicate device %q", d.Name))
		}
		names[d.Name] = true
	}
	return nil
}

// Validate ensures the broker settings are usable. It is not part of Config.Validate: only
// mqttsensors needs a broker.
func (m *MQTTConfig) Validate(path string) error {
	if m.Host == "" {
		return fieldRequired(path, "host")
	}
	if m.Port <= 0 || m.Port > 65535 {
		return invalidField(path, "port", fmt.Sprintf("%d out of range", m.Port))
	}
	return nil
}

// Validate ensures the device has a name, a known type and all the pins it needs.
func (d *Device) Validate(path string) error {
	if d.Name == "" {
		return fieldRequired(path, "name")
	}
	pins, ok := requiredPins[d.Type]
	if !ok {
		return invalidField(path, "type", fmt.Sprintf("unknown device type %q", d.Type))
	}
	if d.Type == TypeDimmer && d.PWM != nil && d.Software {
		return invalidField(path, "software", "cannot be used with a pwm chip")
	}
	if d.Type == TypeDimmer && d.PWM != nil {
		if d.PWM.Chip < 0 || d.PWM.Channel < 0 {
			return invalidField(path, "pwm", "chip and channel must not be negative")
		}
		return nil
	}
	for _, p := range pins {
		if d.Pins[p] == "" {
			return fieldRequired(join(path, "pins"), p)
		}
	}
	return nil
}

// PinNames returns the configured pin keys in sorted order.
func (d *Device) PinNames() []string {
	keys := make([]string, 0, len(d.Pins))
	for k := range d.Pins {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func join(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

func fieldRequired(path, field string) error {
	return errors.Wrapf(devices.ErrInvalidArgument, "%s is required", join(path, field))
}

func invalidField(path, field, msg string) error {
	return errors.Wrapf(devices.ErrInvalidArgument, "%s: %s", join(path, field), msg)
}
