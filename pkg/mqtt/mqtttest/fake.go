// Package mqtttest provides an in-memory mqtt.Client for tests.
package mqtttest

import (
	"context"
	"strings"
	"sync"

	"github.com/saaga0h/parking-edge/pkg/mqtt"
)

// Published is a message recorded by the fake client
type Published struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  string
}

// Client is an in-memory mqtt.Client. Publishes are recorded and delivered
// synchronously to matching subscribers.
type Client struct {
	mu         sync.Mutex
	connected  bool
	connectErr error
	publishErr error
	published  []Published
	handlers   map[string]mqtt.MessageHandler
}

// NewClient returns a disconnected fake client
func NewClient() *Client {
	return &Client{handlers: make(map[string]mqtt.MessageHandler)}
}

// FailConnect makes the next Connect calls return err
func (c *Client) FailConnect(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectErr = err
}

// FailPublish makes Publish return err until cleared with nil
func (c *Client) FailPublish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishErr = err
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectErr != nil {
		return c.connectErr
	}
	c.connected = true
	return nil
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *Client) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
	return nil
}

func (c *Client) Unsubscribe(topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, topic)
	return nil
}

func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	c.mu.Lock()
	if c.publishErr != nil {
		err := c.publishErr
		c.mu.Unlock()
		return err
	}
	c.published = append(c.published, Published{Topic: topic, QoS: qos, Retained: retained, Payload: string(payload)})
	var targets []mqtt.MessageHandler
	for filter, h := range c.handlers {
		if Match(filter, topic) {
			targets = append(targets, h)
		}
	}
	c.mu.Unlock()

	for _, h := range targets {
		h(Message{TopicName: topic, Body: payload})
	}
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Deliver injects an inbound message to every matching subscriber
func (c *Client) Deliver(topic, payload string) {
	c.mu.Lock()
	var targets []mqtt.MessageHandler
	for filter, h := range c.handlers {
		if Match(filter, topic) {
			targets = append(targets, h)
		}
	}
	c.mu.Unlock()

	for _, h := range targets {
		h(Message{TopicName: topic, Body: []byte(payload)})
	}
}

// Published returns a copy of all recorded publishes
func (c *Client) Published() []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Published, len(c.published))
	copy(out, c.published)
	return out
}

// Subscriptions returns the active topic filters
func (c *Client) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.handlers))
	for filter := range c.handlers {
		out = append(out, filter)
	}
	return out
}

// Message is a minimal mqtt.Message
type Message struct {
	TopicName string
	Body      []byte
}

func (m Message) Topic() string   { return m.TopicName }
func (m Message) Payload() []byte { return m.Body }
func (m Message) Ack()            {}

// Match reports whether an MQTT topic filter (with + and # wildcards) matches topic
func Match(filter, topic string) bool {
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")
	for i, f := range fp {
		if f == "#" {
			return true
		}
		if i >= len(tp) {
			return false
		}
		if f != "+" && f != tp[i] {
			return false
		}
	}
	return len(fp) == len(tp)
}

var _ mqtt.Client = (*Client)(nil)
