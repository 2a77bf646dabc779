package bus

import "time"

// Kind discriminates the Event tagged variant.
type Kind string

const (
	KindKeyPress          Kind = "key_press"
	KindEncoderDelta      Kind = "encoder_delta"
	KindButton            Kind = "button"
	KindZoneStateChanged  Kind = "zone_state_changed"
	KindAnimationStarted  Kind = "animation_started"
	KindAnimationStopped  Kind = "animation_stopped"
	KindParamChanged      Kind = "animation_param_changed"
	KindModeChanged       Kind = "mode_changed"
	KindShutdownRequested Kind = "shutdown_requested"
	KindLogEmitted        Kind = "log_emitted"
	KindFPSUpdate         Kind = "fps_update"

	// KindAnimationCancelTimeout fires when a prior animation run doesn't
	// honor cancellation within the grace period and is abandoned rather
	// than awaited further.
	KindAnimationCancelTimeout Kind = "animation_cancel_timeout"
)

// SourceType classifies where an event entered the system, used by the
// Command/Event Boundary for echo suppression.
type SourceType string

const (
	SourceHardware SourceType = "hardware"
	SourceInternal SourceType = "internal"
	SourceCommand  SourceType = "command"
)

// Event is the tagged variant carried over the bus. Every event carries
// OriginClientID (present only for command-sourced events) and
// SourceType; Payload holds the kind-specific data.
type Event struct {
	Kind            Kind
	Timestamp       time.Time
	OriginClientID  string
	SourceType      SourceType
	Payload         map[string]interface{}
}

// NewEvent builds an Event with the current-tick timestamp left to the
// caller (bus.Publish stamps it if zero), keeping construction
// allocation-light for hot input paths like encoder polling.
func NewEvent(kind Kind, sourceType SourceType, originClientID string, payload map[string]interface{}) Event {
	return Event{
		Kind:           kind,
		SourceType:     sourceType,
		OriginClientID: originClientID,
		Payload:        payload,
	}
}
