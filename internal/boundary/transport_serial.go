package boundary

import (
	"bufio"
	"encoding/json"
	"fmt"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/ws281x-core/ledctl/internal/bus"
)

// serialEvent is the line-delimited JSON a companion microcontroller
// emits for each rotary-encoder or button edge it debounces in
// hardware.
type serialEvent struct {
	Kind  string  `json:"kind"` // "encoder_delta" | "button" | "key_press"
	Delta int     `json:"delta,omitempty"`
	ID    string  `json:"id,omitempty"`
	Value float64 `json:"value,omitempty"`
}

// SerialAdapter reads hardware input events off a USB-serial companion
// microcontroller and republishes them on the bus as SourceHardware
// events, so they flow through the same animation/zone control paths a
// websocket command would without going through the Boundary's
// idempotency cache — there is no retry concept for a physical button.
type SerialAdapter struct {
	port serial.Port
	bus  *bus.Bus
	log  *zap.SugaredLogger
	stop chan struct{}
}

// NewSerialAdapter opens portName at baud and starts reading in the
// background.
func NewSerialAdapter(portName string, baud int, b *bus.Bus, log *zap.SugaredLogger) (*SerialAdapter, error) {
	mode := &serial.Mode{BaudRate: baud}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", portName, err)
	}
	a := &SerialAdapter{port: port, bus: b, log: log, stop: make(chan struct{})}
	go a.run()
	return a, nil
}

func (a *SerialAdapter) run() {
	scanner := bufio.NewScanner(a.port)
	for scanner.Scan() {
		select {
		case <-a.stop:
			return
		default:
		}
		var ev serialEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			if a.log != nil {
				a.log.Warnw("serial: dropping malformed line", "error", err)
			}
			continue
		}
		a.publish(ev)
	}
}

func (a *SerialAdapter) publish(ev serialEvent) {
	payload := map[string]interface{}{"id": ev.ID, "delta": ev.Delta, "value": ev.Value}
	switch ev.Kind {
	case "encoder_delta":
		a.bus.Publish(bus.NewEvent(bus.KindEncoderDelta, bus.SourceHardware, "", payload))
	case "button":
		a.bus.Publish(bus.NewEvent(bus.KindButton, bus.SourceHardware, "", payload))
	case "key_press":
		a.bus.Publish(bus.NewEvent(bus.KindKeyPress, bus.SourceHardware, "", payload))
	}
}

// Close stops the read loop and releases the serial port.
func (a *SerialAdapter) Close() {
	close(a.stop)
	a.port.Close()
}
