// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tve/pindevices/devconf"
)

// broker is what the gateway needs from an MQTT connection.
type broker interface {
	// Publish sends payload JSON encoded.
	Publish(topic string, payload interface{}) error
	// Subscribe calls fn with the raw payload of every message received on topic.
	Subscribe(topic string, fn func(topic string, payload []byte)) error
}

// mq is a handle onto a MQTT broker connection. The connection is persistent, i.e., it
// re-establishes itself if there is a disconnect, and subscriptions get renewed after a
// reconnect.
type mq struct {
	conn mqtt.Client
	log  *zap.SugaredLogger
	mu   sync.Mutex
	subs map[string]mqtt.MessageHandler
}

// newMQ connects to the broker.
func newMQ(conf devconf.MQTTConfig, logger *zap.SugaredLogger) (*mq, error) {
	id := conf.ClientID
	if id == "" {
		hostname, _ := os.Hostname()
		id = "mqttsensors-" + hostname
	}
	logger.Debugf("configuring MQTT with client id %s: %s:%d", id, conf.Host, conf.Port)
	mqtt.ERROR = log.New(os.Stderr, "mqtt: ", 0)
	m := &mq{log: logger, subs: map[string]mqtt.MessageHandler{}}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", conf.Host, conf.Port)).
		SetClientID(id).
		SetUsername(conf.User).
		SetPassword(conf.Password).
		SetAutoReconnect(true).
		SetOnConnectHandler(m.resubscribe).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			logger.Warnf("MQTT connection lost: %v", err)
		})
	m.conn = mqtt.NewClient(opts)
	token := m.conn.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, errors.Errorf("timeout connecting to %s:%d", conf.Host, conf.Port)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrap(err, "cannot connect to MQTT broker")
	}
	logger.Infof("MQTT connected to %s:%d", conf.Host, conf.Port)
	return m, nil
}

// resubscribe renews all subscriptions after a reconnect.
func (m *mq) resubscribe(c mqtt.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for topic, h := range m.subs {
		c.Subscribe(topic, 1, h)
	}
}

// Publish implements broker. It does not wait for the broker to acknowledge.
func (m *mq) Publish(topic string, payload interface{}) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "cannot encode payload for %s", topic)
	}
	m.conn.Publish(topic, 1, false, buf)
	return nil
}

// Subscribe implements broker.
func (m *mq) Subscribe(topic string, fn func(topic string, payload []byte)) error {
	h := func(c mqtt.Client, msg mqtt.Message) {
		fn(msg.Topic(), msg.Payload())
	}
	m.mu.Lock()
	m.subs[topic] = h
	m.mu.Unlock()
	token := m.conn.Subscribe(topic, 1, h)
	if !token.WaitTimeout(2 * time.Second) {
		return errors.Errorf("timeout subscribing to %s", topic)
	}
	return errors.Wrapf(token.Error(), "cannot subscribe to %s", topic)
}

// Close disconnects, waiting up to a quarter second for pending work.
func (m *mq) Close() {
	m.conn.Disconnect(250)
}
