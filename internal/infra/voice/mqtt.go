package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"vocalights/internal/application"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
	mqttQuiesce        = 250 // milliseconds
)

var (
	ErrMQTTConnect = errors.New("mqtt: connection failed")
	ErrMQTTPublish = errors.New("mqtt: publish failed")
)

type MQTTConfig struct {
	Broker        string
	ClientID      string
	Username      string
	Password      string
	CommandTopic  string
	ResponseTopic string
	QoS           byte
}

// MQTTChannel receives phrases on a command topic and publishes spoken
// responses on a response topic. Payloads are plain text or a JSON object
// with a "text" field.
type MQTTChannel struct {
	cfg    MQTTConfig
	client pahomqtt.Client
	queue  chan application.Utterance
	done   chan struct{}
	logger *slog.Logger

	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
}

func NewMQTTChannel(cfg MQTTConfig, logger *slog.Logger) *MQTTChannel {
	m := &MQTTChannel{
		cfg:    cfg,
		queue:  make(chan application.Utterance, 10),
		done:   make(chan struct{}),
		logger: logger,
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		m.resubscribe()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	m.client = pahomqtt.NewClient(opts)
	return m
}

// NewMQTTChannelWithClient wires an existing paho client.
func NewMQTTChannelWithClient(cfg MQTTConfig, client pahomqtt.Client, logger *slog.Logger) *MQTTChannel {
	return &MQTTChannel{
		cfg:    cfg,
		client: client,
		queue:  make(chan application.Utterance, 10),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (m *MQTTChannel) Name() string {
	return "mqtt"
}

func (m *MQTTChannel) Start(_ context.Context) error {
	if !m.client.IsConnected() {
		token := m.client.Connect()
		if !token.WaitTimeout(mqttConnectTimeout) {
			return fmt.Errorf("%w: timeout after %v", ErrMQTTConnect, mqttConnectTimeout)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("%w: %w", ErrMQTTConnect, err)
		}
	}

	if err := m.subscribe(); err != nil {
		return err
	}

	m.mu.Lock()
	m.started = true
	m.mu.Unlock()

	m.logger.Info("mqtt voice channel ready", "broker", m.cfg.Broker, "topic", m.cfg.CommandTopic)
	return nil
}

func (m *MQTTChannel) subscribe() error {
	token := m.client.Subscribe(m.cfg.CommandTopic, m.cfg.QoS, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		m.handleMessage(msg.Payload())
	})
	if !token.WaitTimeout(mqttConnectTimeout) {
		return fmt.Errorf("subscribing to %s: timeout", m.cfg.CommandTopic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribing to %s: %w", m.cfg.CommandTopic, err)
	}
	return nil
}

func (m *MQTTChannel) resubscribe() {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		return
	}
	if err := m.subscribe(); err != nil {
		m.logger.Error("restoring mqtt subscription", "error", err)
	}
}

func (m *MQTTChannel) handleMessage(payload []byte) {
	text := parsePayload(payload)
	if text == "" {
		return
	}

	// paho can still deliver after Stop; the queue stays open and late
	// phrases are dropped.
	select {
	case <-m.done:
		m.logger.Debug("mqtt channel stopped, dropping phrase", "text", text)
		return
	default:
	}

	select {
	case m.queue <- application.Utterance{Text: text}:
		m.logger.Info("received text command via mqtt", "text", text)
	default:
		m.logger.Warn("mqtt queue full, dropping phrase", "text", text)
	}
}

func parsePayload(payload []byte) string {
	trimmed := strings.TrimSpace(string(payload))
	if strings.HasPrefix(trimmed, "{") {
		var msg struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(trimmed), &msg); err == nil {
			return strings.TrimSpace(msg.Text)
		}
	}
	return trimmed
}

func (m *MQTTChannel) Stop() error {
	m.mu.Lock()
	m.started = false
	m.mu.Unlock()

	if m.client.IsConnected() {
		m.client.Unsubscribe(m.cfg.CommandTopic).WaitTimeout(mqttPublishTimeout)
		m.client.Disconnect(mqttQuiesce)
	}

	m.stopOnce.Do(func() {
		close(m.done)
	})
	return nil
}

func (m *MQTTChannel) Next(ctx context.Context) (application.Utterance, error) {
	select {
	case <-m.done:
		return application.Utterance{}, io.EOF
	default:
	}

	select {
	case <-ctx.Done():
		return application.Utterance{}, ctx.Err()
	case <-m.done:
		return application.Utterance{}, io.EOF
	case utt := <-m.queue:
		return utt, nil
	}
}

// Speak publishes text on the response topic. Without a response topic it
// does nothing.
func (m *MQTTChannel) Speak(_ context.Context, text string) error {
	if m.cfg.ResponseTopic == "" {
		return nil
	}
	if !m.client.IsConnected() {
		return fmt.Errorf("%w: not connected", ErrMQTTPublish)
	}

	token := m.client.Publish(m.cfg.ResponseTopic, m.cfg.QoS, false, text)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrMQTTPublish, mqttPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrMQTTPublish, err)
	}
	return nil
}
