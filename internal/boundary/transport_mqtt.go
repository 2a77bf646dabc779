package boundary

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/ws281x-core/ledctl/internal/bus"
)

// MQTTAdapter lets home-automation systems (Home Assistant, openHAB,
// other automation flows outside this process) drive zones by publishing
// JSON commands to a topic, an alternate command-ingress path alongside
// the websocket transport: the boundary is transport-agnostic.
type MQTTAdapter struct {
	client   mqtt.Client
	boundary *Boundary
	topic    string
	log      *zap.SugaredLogger
}

// NewMQTTAdapter connects to broker and subscribes to commandTopic.
// Every inbound message is unmarshaled as a Command and dispatched with
// SourceCommand — an id derived from the message topic ("mqtt:<topic>")
// is used as the origin client for idempotency scoping.
func NewMQTTAdapter(brokerURL, clientID, commandTopic string, boundary *Boundary, log *zap.SugaredLogger) (*MQTTAdapter, error) {
	opts := mqtt.NewClientOptions().AddBroker(brokerURL).SetClientID(clientID).SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt: connect: %w", token.Error())
	}

	a := &MQTTAdapter{client: client, boundary: boundary, topic: commandTopic, log: log}
	token := client.Subscribe(commandTopic, 1, a.onMessage)
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt: subscribe %s: %w", commandTopic, token.Error())
	}
	return a, nil
}

func (a *MQTTAdapter) onMessage(_ mqtt.Client, msg mqtt.Message) {
	var env inboundEnvelope
	if err := json.Unmarshal(msg.Payload(), &env); err != nil {
		if a.log != nil {
			a.log.Warnw("mqtt: dropping malformed command", "topic", msg.Topic(), "error", err)
		}
		return
	}
	a.boundary.Dispatch(Command{
		Kind:      env.Kind,
		ClientID:  "mqtt:" + msg.Topic(),
		RequestID: env.RequestID,
		ZoneID:    env.ZoneID,
		Payload:   env.Payload,
	}, bus.SourceCommand)
}

// Close disconnects cleanly.
func (a *MQTTAdapter) Close() {
	a.client.Disconnect(250)
}
