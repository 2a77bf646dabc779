package boundary

import "fmt"

// ErrOutOfRange is returned when a command's value fails a boundary
// range check, so it is rejected here and never reaches the domain
// layer.
type ErrOutOfRange struct {
	Field    string
	Value    int
	Min, Max int
}

func (e *ErrOutOfRange) Error() string {
	return fmt.Sprintf("%s: %d out of range [%d, %d]", e.Field, e.Value, e.Min, e.Max)
}

// Kind discriminates a command's intent: the boundary's inbound command
// set, regardless of which transport it arrived over.
type Kind string

const (
	KindSetColor          Kind = "set_color"
	KindSetBrightness     Kind = "set_brightness"
	KindSetEnabled        Kind = "set_enabled"
	KindSetMode           Kind = "set_mode"
	KindSetAnimationParam Kind = "set_animation_param"
	KindStartAnimation    Kind = "start_animation"
	KindStopAnimation     Kind = "stop_animation"
	KindStopAllAnimations Kind = "stop_all_animations"
	KindFade              Kind = "fade"
	KindGetZone           Kind = "get_zone"
	KindGetAllZones       Kind = "get_all_zones"
)

// Command is the transport-agnostic request the boundary validates and
// applies. RequestID+ClientID together form the idempotency key.
type Command struct {
	Kind      Kind
	ClientID  string
	RequestID string
	ZoneID    string
	Payload   map[string]interface{}
}

// CommandResult is what Dispatch returns, transports marshal it however
// their wire format requires.
type CommandResult struct {
	OK     bool
	Error  string
	Data   map[string]interface{}
	Replay bool // true when this result came from the idempotency cache
}

func errResult(err error) CommandResult {
	return CommandResult{OK: false, Error: err.Error()}
}

func okResult(data map[string]interface{}) CommandResult {
	return CommandResult{OK: true, Data: data}
}
