// Package transport wraps the MQTT connection to the broker: the retained
// state publish, the ring-topic subscription, and connection liveness.
package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/signbridge/signbridge/internal/config"
	"github.com/signbridge/signbridge/internal/state"
)

const publishTimeout = 2 * time.Second

// Client connects the bridge to the MQTT broker. Paho handles the network
// loop and auto-reconnect; the connect hook re-subscribes the ring topic
// and republishes a fresh placeholder after every (re)connection.
type Client struct {
	cli        mqtt.Client
	stateTopic string
	ringTopic  string
	logger     *slog.Logger

	mu          sync.Mutex
	connectHook func()
	ringHandler func(payload []byte)
}

func NewClient(cfg config.MQTTConfig, logger *slog.Logger) *Client {
	c := &Client{
		stateTopic: cfg.StateTopic,
		ringTopic:  cfg.RingTopic,
		logger:     logger.With("component", "transport"),
	}

	hostname, _ := os.Hostname()
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL()).
		SetClientID(fmt.Sprintf("office-sign-bridge@%s", hostname)).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(c.handleConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			c.logger.Warn("MQTT connection lost", "error", err)
		})

	c.cli = mqtt.NewClient(opts)
	return c
}

// SetConnectHook registers the function run after every successful
// (re)connection, once the ring subscription is in place.
func (c *Client) SetConnectHook(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectHook = fn
}

// SetRingHandler registers the handler for messages on the ring topic.
func (c *Client) SetRingHandler(fn func(payload []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ringHandler = fn
}

// Connect establishes the initial broker connection. Reconnects after that
// are paho's responsibility.
func (c *Client) Connect() error {
	token := c.cli.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// Publish sends the state to the retained state topic at QoS 0. Failures
// are returned for the caller to log; the next adapter tick naturally
// republishes a fresher state, so there are no retries here.
func (c *Client) Publish(s *state.State) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	token := c.cli.Publish(c.stateTopic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", c.stateTopic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", c.stateTopic, err)
	}
	return nil
}

// Connected reports broker liveness for the health report.
func (c *Client) Connected() bool {
	return c.cli.IsConnectionOpen()
}

// Close disconnects from the broker, allowing in-flight work to finish.
func (c *Client) Close() {
	c.cli.Disconnect(250)
}

func (c *Client) handleConnect(cli mqtt.Client) {
	c.logger.Info("MQTT connected")

	token := cli.Subscribe(c.ringTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		c.mu.Lock()
		handler := c.ringHandler
		c.mu.Unlock()
		if handler != nil {
			handler(msg.Payload())
		}
	})
	if !token.WaitTimeout(publishTimeout) {
		c.logger.Error("ring topic subscribe timed out", "topic", c.ringTopic)
	} else if err := token.Error(); err != nil {
		c.logger.Error("ring topic subscribe failed", "topic", c.ringTopic, "error", err)
	}

	c.mu.Lock()
	hook := c.connectHook
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
}
