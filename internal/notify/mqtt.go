package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ayusman/ledwatch/internal/decision"
)

// Publisher is the subset of mqtt.Client used by MQTTSink.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTOptions configures an MQTT connection.
type MQTTOptions struct {
	Broker   string
	ClientID string
	Timeout  time.Duration
}

// Connect opens an MQTT client connection.
func Connect(opts MQTTOptions) (mqtt.Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	co := mqtt.NewClientOptions().AddBroker(opts.Broker).SetClientID(opts.ClientID)
	co.SetKeepAlive(30 * time.Second)
	co.SetPingTimeout(5 * time.Second)
	co.SetAutoReconnect(true)
	co.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		log.Printf("MQTT connection lost: %v", err)
	})

	c := mqtt.NewClient(co)
	token := c.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: timeout", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", opts.Broker, err)
	}
	return c, nil
}

// MQTTSink publishes the terminal event, and optionally every tick, as JSON.
// Ticks go to <Topic>/ticks.
type MQTTSink struct {
	Client       Publisher
	Topic        string
	QoS          byte
	PublishTicks bool
	Timeout      time.Duration
}

type eventPayload struct {
	Action  string           `json:"action"`
	RunID   string           `json:"run_id,omitempty"`
	Verdict decision.Verdict `json:"verdict"`
	Elapsed float64          `json:"elapsed"`
	Ticks   int              `json:"ticks"`
	At      time.Time        `json:"at"`
}

// Deliver implements Sink. The terminal event is retained so late
// subscribers see the last verdict.
func (s *MQTTSink) Deliver(ctx context.Context, ev Event) error {
	if err := validate(ev); err != nil {
		return err
	}

	msg, err := json.Marshal(eventPayload{
		Action:  "cycle-ended",
		RunID:   ev.RunID,
		Verdict: ev.Verdict,
		Elapsed: ev.ElapsedSeconds(),
		Ticks:   ev.Ticks,
		At:      ev.At,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return s.publish(ctx, s.Topic, true, msg)
}

// ObserveTick publishes the tick when PublishTicks is set.
func (s *MQTTSink) ObserveTick(tick decision.Tick) {
	if !s.PublishTicks {
		return
	}

	msg, err := json.Marshal(tick)
	if err != nil {
		log.Printf("mqtt: failed to marshal tick: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout())
	defer cancel()
	if err := s.publish(ctx, s.Topic+"/ticks", false, msg); err != nil {
		log.Printf("mqtt: %v", err)
	}
}

func (s *MQTTSink) publish(ctx context.Context, topic string, retained bool, msg []byte) error {
	token := s.Client.Publish(topic, s.QoS, retained, msg)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", topic, ctx.Err())
	case <-time.After(s.timeout()):
		return fmt.Errorf("publish to %s: timeout after %v", topic, s.timeout())
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (s *MQTTSink) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return 10 * time.Second
}
