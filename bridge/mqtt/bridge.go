package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	channerics "github.com/niceyeti/channerics/channels"

	"github.com/valpatel/tritium-sc/engine-core/eventbus"
	"github.com/valpatel/tritium-sc/engine-core/model"
	"github.com/valpatel/tritium-sc/engine-core/tracker"
)

// Config tunes the MQTT bridge.
type Config struct {
	BrokerURL string
	Site      string
	ClientID  string
	Username  string
	Password  string
}

// Bridge subscribes to robot telemetry, feeds the tracker (mqtt_
// prefix), republishes sensor events outward, and exposes the per-robot
// command topic. Transport-level retry is delegated to the paho client's
// auto-reconnect; the bridge only logs transitions.
type Bridge struct {
	cfg     Config
	client  paho.Client
	bus     *eventbus.Bus
	tracker *tracker.Tracker
	log     *slog.Logger

	// Observe, optional, counts bridge activity for metrics
	// ("inbound", "protocol_error", "reconnect").
	Observe func(what string)
}

// NewBridge builds the bridge and its paho client. Connect happens in Run.
func NewBridge(cfg Config, bus *eventbus.Bus, trk *tracker.Tracker, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	b := &Bridge{cfg: cfg, bus: bus, tracker: trk, log: log}

	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(8 * time.Second).
		SetConnectTimeout(5 * time.Second).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			b.observe("reconnect")
			log.Warn("mqtt connection lost", "error", err)
		})
	b.client = paho.NewClient(opts)
	return b
}

// Run connects and pumps until ctx is cancelled. A broker that is down
// at startup is not fatal; paho keeps retrying in the background.
func (b *Bridge) Run(ctx context.Context) {
	if token := b.client.Connect(); token.WaitTimeout(5*time.Second) && token.Error() != nil {
		b.log.Warn("mqtt initial connect failed, retrying in background", "error", token.Error())
	}
	go b.mirrorSensorEvents(ctx)
	<-ctx.Done()
	b.client.Disconnect(250)
}

// onConnect (re)establishes subscriptions; paho drops them on reconnect
// unless session state is preserved, so resubscribing here is the
// reliable path.
func (b *Bridge) onConnect(client paho.Client) {
	topic := fmt.Sprintf("tritium/%s/robots/+/telemetry", b.cfg.Site)
	token := client.Subscribe(topic, 1, b.handleTelemetry)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		b.log.Error("mqtt subscribe failed", "topic", topic, "error", token.Error())
		return
	}
	b.log.Info("mqtt subscribed", "topic", topic)
}

// handleTelemetry normalizes one robot telemetry message into the
// tracker under the mqtt_ prefix. Robots the engine itself simulates
// (fake fleet mirror-outs) come back with our own prefix and are
// dropped to prevent loops.
func (b *Bridge) handleTelemetry(_ paho.Client, msg paho.Message) {
	t, err := DecodeTelemetry(msg.Payload())
	if err != nil {
		b.observe("protocol_error")
		b.log.Warn("dropping bad telemetry", "topic", msg.Topic(), "error", err)
		return
	}
	if strings.HasPrefix(t.RobotID, tracker.PrefixMQTT) || strings.HasPrefix(t.RobotID, "fake-robot-") {
		return // our own mirror, looped back by the broker
	}
	v := t.ToTargetView(model.Reference())
	v.TargetID = tracker.PrefixMQTT + v.TargetID
	if err := b.tracker.UpdateExternal("mqtt", v, 1.0); err != nil {
		b.log.Warn("tracker rejected mqtt target", "target_id", v.TargetID, "error", err)
		return
	}
	b.observe("inbound")
	b.bus.Publish(eventbus.Event{Kind: "robot_telemetry", Payload: v})
}

// SendCommand publishes a command to one robot's command topic.
func (b *Bridge) SendCommand(robotID string, cmd Command) error {
	data, err := EncodeCommand(cmd, time.Now())
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}
	topic := fmt.Sprintf("tritium/%s/robots/%s/command", b.cfg.Site, robotID)
	token := b.client.Publish(topic, 1, false, data)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		return fmt.Errorf("publish command: %w", token.Error())
	}
	return nil
}

// PublishTelemetry mirrors an engine-owned robot's state out on its
// telemetry topic, used for the fake fleet so external consumers see
// the same traffic a real robot would produce.
func (b *Bridge) PublishTelemetry(v model.TargetView) error {
	data, err := EncodeTelemetry(FromTargetView(v))
	if err != nil {
		return fmt.Errorf("encode telemetry: %w", err)
	}
	topic := fmt.Sprintf("tritium/%s/robots/%s/telemetry", b.cfg.Site, v.TargetID)
	token := b.client.Publish(topic, 0, false, data)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		return fmt.Errorf("publish telemetry: %w", token.Error())
	}
	return nil
}

// mirrorSensorEvents republishes engine sensor triggers on the sensor
// event topic so external automations can react without a websocket.
func (b *Bridge) mirrorSensorEvents(ctx context.Context) {
	sub := b.bus.Subscribe("sensor_triggered", eventbus.DefaultQueueSize)
	defer sub.Close()
	for ev := range channerics.OrDone[eventbus.Event](ctx.Done(), sub.Events()) {
		payload, ok := ev.Payload.(map[string]any)
		if !ok {
			continue
		}
		sensorID, _ := payload["sensor_id"].(string)
		if sensorID == "" {
			continue
		}
		data, err := encodeSensorEvent(payload)
		if err != nil {
			continue
		}
		topic := fmt.Sprintf("tritium/%s/sensors/%s/events", b.cfg.Site, sensorID)
		b.client.Publish(topic, 0, false, data)
	}
}

func (b *Bridge) observe(what string) {
	if b.Observe != nil {
		b.Observe(what)
	}
}
