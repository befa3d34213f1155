// Package mqttclient wraps the paho MQTT client for the bridge: it
// connects with retry, tracks every subscribed topic so the full set is
// re-established after a broker reconnect, and reports connection state.
package mqttclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/c360/i3xbridge/errors"
	"github.com/c360/i3xbridge/metric"
	"github.com/c360/i3xbridge/pkg/retry"
	"github.com/c360/i3xbridge/pkg/timestamp"
	"github.com/c360/i3xbridge/pkg/tlsutil"
)

// ConnectionStatus represents the state of the broker connection.
type ConnectionStatus int

// Possible connection statuses.
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
)

// String returns the string representation of ConnectionStatus.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// MessageHandler receives every message on a subscribed topic.
type MessageHandler func(topic string, payload []byte)

// Config holds broker connection settings.
type Config struct {
	BrokerURL       string               `json:"broker_url"       yaml:"broker_url"`
	ClientID        string               `json:"client_id"        yaml:"client_id"`
	Username        string               `json:"username"         yaml:"username"`
	Password        string               `json:"password"         yaml:"password"`
	KeepAlive       timestamp.Duration   `json:"keep_alive"       yaml:"keep_alive"`
	ReconnectPeriod timestamp.Duration   `json:"reconnect_period" yaml:"reconnect_period"`
	ConnectTimeout  timestamp.Duration   `json:"connect_timeout"  yaml:"connect_timeout"`
	ProtocolVersion uint                 `json:"protocol_version" yaml:"protocol_version"`
	QoS             byte                 `json:"qos"              yaml:"qos"`
	TLS             tlsutil.ClientConfig `json:"tls"              yaml:"tls"`
}

// DefaultConfig returns broker settings suitable for a local mosquitto.
func DefaultConfig() Config {
	return Config{
		BrokerURL:       "tcp://localhost:1883",
		ClientID:        "i3xbridge",
		KeepAlive:       timestamp.Duration(30 * time.Second),
		ReconnectPeriod: timestamp.Duration(5 * time.Second),
		ConnectTimeout:  timestamp.Duration(10 * time.Second),
		ProtocolVersion: 4,
		QoS:             0,
	}
}

// Client is the bridge's MQTT transport. Safe for concurrent use.
type Client struct {
	cfg     Config
	handler MessageHandler
	metrics *metric.Metrics
	logger  *slog.Logger

	client mqtt.Client

	status     atomic.Value // ConnectionStatus
	reconnects atomic.Int64

	mu     sync.Mutex
	topics map[string]struct{}
}

// NewClient creates a Client. handler receives every subscribed
// message; metrics may be nil.
func NewClient(cfg Config, handler MessageHandler, metrics *metric.Metrics) (*Client, error) {
	if cfg.BrokerURL == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("broker URL is required"),
			"mqttclient", "NewClient", "validate config")
	}
	if handler == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("message handler is required"),
			"mqttclient", "NewClient", "validate config")
	}

	c := &Client{
		cfg:     cfg,
		handler: handler,
		metrics: metrics,
		logger:  slog.Default().With("component", "mqttclient"),
		topics:  make(map[string]struct{}),
	}
	c.status.Store(StatusDisconnected)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetKeepAlive(cfg.KeepAlive.Std()).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(cfg.ReconnectPeriod.Std()).
		SetConnectTimeout(cfg.ConnectTimeout.Std()).
		SetOrderMatters(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.ProtocolVersion != 0 {
		opts.SetProtocolVersion(cfg.ProtocolVersion)
	}
	if cfg.TLS.Enabled {
		tlsConfig, err := tlsutil.LoadClientTLSConfig(cfg.TLS)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		c.setStatus(StatusReconnecting)
	})

	c.client = mqtt.NewClient(opts)
	return c, nil
}

// Connect dials the broker, retrying with backoff until ctx is done.
func (c *Client) Connect(ctx context.Context) error {
	c.setStatus(StatusConnecting)
	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
		token := c.client.Connect()
		select {
		case <-ctx.Done():
			return retry.NonRetryable(ctx.Err())
		case <-token.Done():
		}
		if err := token.Error(); err != nil {
			c.logger.Warn("broker connect failed",
				"broker_url", c.cfg.BrokerURL,
				"error", err)
			return err
		}
		return nil
	})
	if err != nil {
		c.setStatus(StatusDisconnected)
		return errors.WrapTransient(err, "mqttclient", "Connect", "connect to broker")
	}
	return nil
}

// Subscribe adds a topic to the tracked set and, when connected,
// subscribes immediately. Tracked topics survive reconnects.
func (c *Client) Subscribe(topic string) error {
	if topic == "" {
		return errors.WrapInvalid(
			fmt.Errorf("empty topic"),
			"mqttclient", "Subscribe", "validate topic")
	}

	c.mu.Lock()
	c.topics[topic] = struct{}{}
	c.mu.Unlock()

	if !c.client.IsConnectionOpen() {
		return nil
	}
	return c.subscribeNow(topic)
}

// Unsubscribe drops a topic from the tracked set and from the broker.
func (c *Client) Unsubscribe(topic string) error {
	c.mu.Lock()
	delete(c.topics, topic)
	c.mu.Unlock()

	if !c.client.IsConnectionOpen() {
		return nil
	}
	token := c.client.Unsubscribe(topic)
	token.Wait()
	if err := token.Error(); err != nil {
		return errors.WrapTransient(err, "mqttclient", "Unsubscribe",
			fmt.Sprintf("unsubscribe %s", topic))
	}
	return nil
}

// Topics returns the currently tracked subscription set.
func (c *Client) Topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.topics))
	for topic := range c.topics {
		out = append(out, topic)
	}
	return out
}

// Status returns the current connection status.
func (c *Client) Status() ConnectionStatus {
	return c.status.Load().(ConnectionStatus)
}

// Reconnects returns how many times the connection was re-established.
func (c *Client) Reconnects() int64 {
	return c.reconnects.Load()
}

// Close disconnects from the broker, allowing in-flight work the given
// grace period.
func (c *Client) Close(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
	c.setStatus(StatusDisconnected)
	if c.metrics != nil {
		c.metrics.RecordMQTTStatus(false)
	}
}

func (c *Client) setStatus(status ConnectionStatus) {
	c.status.Store(status)
}

// onConnect fires on both the first connect and every reconnect; the
// broker forgets subscriptions in between, so replay the full set.
func (c *Client) onConnect(mqtt.Client) {
	first := c.Status() == StatusConnecting
	if !first {
		c.reconnects.Add(1)
		if c.metrics != nil {
			c.metrics.MQTTReconnects.Inc()
		}
	}
	c.setStatus(StatusConnected)
	if c.metrics != nil {
		c.metrics.RecordMQTTStatus(true)
	}
	c.logger.Info("connected to broker",
		"broker_url", c.cfg.BrokerURL,
		"reconnect", !first)

	for _, topic := range c.Topics() {
		if err := c.subscribeNow(topic); err != nil {
			c.logger.Error("resubscribe failed",
				"topic", topic,
				"error", err)
		}
	}
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.setStatus(StatusReconnecting)
	if c.metrics != nil {
		c.metrics.RecordMQTTStatus(false)
	}
	c.logger.Warn("broker connection lost", "error", err)
}

func (c *Client) subscribeNow(topic string) error {
	token := c.client.Subscribe(topic, c.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		c.handler(msg.Topic(), msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return errors.WrapTransient(err, "mqttclient", "subscribeNow",
			fmt.Sprintf("subscribe %s", topic))
	}
	c.logger.Debug("subscribed", "topic", topic)
	return nil
}
