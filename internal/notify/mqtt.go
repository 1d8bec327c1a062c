package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/skyglow/skyglow-go/internal/conf"
	"github.com/skyglow/skyglow-go/internal/errors"
	"github.com/skyglow/skyglow-go/internal/logger"
)

// StatusSubtopic is appended to the configured topic
const StatusSubtopic = "status"

// MQTTConfig configures the broker connection
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	Retain   bool

	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// MQTTConfigFromSettings builds a config for station name from s
func MQTTConfigFromSettings(s *conf.MQTTSettings, station string) MQTTConfig {
	if station == "" {
		station = "skyglow"
	}
	return MQTTConfig{
		Broker:   s.Broker,
		ClientID: station + "-" + uuid.NewString()[:8],
		Username: s.Username,
		Password: s.Password,
		Topic:    s.Topic,
		Retain:   s.Retain,
	}
}

// MQTT publishes events as JSON to <topic>/status. It connects lazily on
// the first event and stays connected until Close.
type MQTT struct {
	cfg MQTTConfig
	log logger.Logger

	mu        sync.Mutex
	client    mqtt.Client
	newClient func(*mqtt.ClientOptions) mqtt.Client
}

// NewMQTT creates an MQTT notifier without connecting
func NewMQTT(cfg MQTTConfig, log logger.Logger) *MQTT {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 10 * time.Second
	}
	if cfg.DisconnectTimeout <= 0 {
		cfg.DisconnectTimeout = 250 * time.Millisecond
	}
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	return &MQTT{cfg: cfg, log: log.Module("notify"), newClient: mqtt.NewClient}
}

// Topic is the status topic events are published to
func (m *MQTT) Topic() string {
	return m.cfg.Topic + "/" + StatusSubtopic
}

// Notify implements Notifier
func (m *MQTT) Notify(ctx context.Context, e Event) error {
	payload, err := e.Payload()
	if err != nil {
		return m.wrap(err, "marshal")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.connect(ctx); err != nil {
		return err
	}

	token := m.client.Publish(m.Topic(), 1, m.cfg.Retain, payload)
	if err := wait(ctx, token, m.cfg.PublishTimeout); err != nil {
		return m.wrap(err, "publish")
	}
	m.log.Debug("status published",
		logger.String("topic", m.Topic()),
		logger.Int("bytes", len(payload)))
	return nil
}

// connect requires m.mu
func (m *MQTT) connect(ctx context.Context) error {
	if m.client != nil && m.client.IsConnected() {
		return nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.cfg.Broker)
	opts.SetClientID(m.cfg.ClientID)
	opts.SetUsername(m.cfg.Username)
	opts.SetPassword(m.cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(m.cfg.ConnectTimeout)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		m.log.Warn("mqtt connection lost", logger.String("broker", m.cfg.Broker), logger.Error(err))
	})

	client := m.newClient(opts)
	if err := wait(ctx, client.Connect(), m.cfg.ConnectTimeout); err != nil {
		return m.wrap(err, "connect")
	}
	m.client = client
	m.log.Info("connected to mqtt broker", logger.String("broker", m.cfg.Broker))
	return nil
}

// Close disconnects from the broker
func (m *MQTT) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(uint(m.cfg.DisconnectTimeout.Milliseconds()))
	}
	m.client = nil
}

func (m *MQTT) wrap(err error, operation string) error {
	return errors.New(err).
		Component("notify").
		Category(errors.CategoryNotification).
		Context("target", "mqtt").
		Context("broker", m.cfg.Broker).
		Context("operation", operation).
		Build()
}

// wait blocks until token completes, timeout passes or ctx ends
func wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return fmt.Errorf("timed out after %v", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
