package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"deen-companion-backend/internal/prayer"
)

// Publisher broadcasts prayer state to connected displays.
type Publisher interface {
	PublishStatus(ctx context.Context, date string, d prayer.Derivation) error
	PublishAnnouncement(ctx context.Context, a Announcement) error
}

// StatusMessage is published on "<topic>/status" on every watcher tick.
type StatusMessage struct {
	Date string `json:"date"`
	prayer.Derivation
}

// MQTTOptions configures NewMQTTPublisher.
type MQTTOptions struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
}

// MQTTPublisher publishes to an MQTT broker with QoS 1.
type MQTTPublisher struct {
	client  mqtt.Client
	topic   string
	timeout time.Duration
}

// NewMQTTPublisher connects to the broker. The client reconnects on its own
// after the initial connection succeeds.
func NewMQTTPublisher(opts MQTTOptions) (*MQTTPublisher, error) {
	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	co.SetUsername(opts.Username)
	co.SetPassword(opts.Password)
	co.SetAutoReconnect(true)
	co.OnConnect = func(mqtt.Client) {
		log.Info().Str("broker", opts.Broker).Msg("connected to MQTT broker")
	}
	co.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", opts.Broker).Msg("MQTT connection lost")
	}

	client := mqtt.NewClient(co)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return newMQTTPublisher(client, opts.Topic), nil
}

func newMQTTPublisher(client mqtt.Client, topic string) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic, timeout: 5 * time.Second}
}

// PublishStatus publishes the current derivation as a retained message so
// displays that connect later get the latest state.
func (p *MQTTPublisher) PublishStatus(ctx context.Context, date string, d prayer.Derivation) error {
	return p.publish(ctx, p.topic+"/status", true, StatusMessage{Date: date, Derivation: d})
}

func (p *MQTTPublisher) PublishAnnouncement(ctx context.Context, a Announcement) error {
	return p.publish(ctx, p.topic+"/announce", false, a)
}

func (p *MQTTPublisher) publish(ctx context.Context, topic string, retained bool, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode MQTT message: %w", err)
	}

	token := p.client.Publish(topic, 1, retained, body)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.timeout):
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker, waiting up to 250ms for in-flight work.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
	log.Info().Msg("MQTT publisher disconnected")
}
