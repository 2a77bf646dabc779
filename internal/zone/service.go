package zone

import (
	"fmt"
	"sync"

	"github.com/ws281x-core/ledctl/internal/bus"
	"github.com/ws281x-core/ledctl/internal/color"
)

// ErrUnknownZone is returned by every mutator/reader when the zone id
// does not exist in the loaded topology.
type ErrUnknownZone struct{ ID ID }

func (e *ErrUnknownZone) Error() string { return fmt.Sprintf("unknown zone %q", e.ID) }

// Service is the single writer for zone state. All
// mutators take a lock, apply the change, publish a ZoneStateChanged
// event, and arm the snapshot debounce timer — in that order, so
// subscribers observe state that is already consistent with what will
// eventually be persisted.
type Service struct {
	mu      sync.RWMutex
	configs map[ID]Config
	states  map[ID]State
	order   []ID // strip/range order, stable for All()

	bus      *bus.Bus
	onChange func() // snapshot debounce hook; nil-safe
}

// NewService builds a Service from validated topology and an initial
// state map (normally populated by loading a snapshot, falling back to
// DefaultState for zones absent from it).
func NewService(configs []Config, initial map[ID]State, b *bus.Bus) (*Service, error) {
	if err := ValidateTopology(configs); err != nil {
		return nil, err
	}
	s := &Service{
		configs: make(map[ID]Config, len(configs)),
		states:  make(map[ID]State, len(configs)),
		bus:     b,
	}
	for _, c := range configs {
		s.configs[c.ID] = c
		s.order = append(s.order, c.ID)
		if st, ok := initial[c.ID]; ok {
			s.states[c.ID] = st
		} else {
			s.states[c.ID] = DefaultState()
		}
	}
	return s, nil
}

// OnChange registers the callback invoked after every successful mutation,
// used by the snapshot writer to reset its debounce timer. Only one
// callback is supported; later calls replace it.
func (s *Service) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// PixelCount implements frame.ZonePixelCount.
func (s *Service) PixelCount(id ID) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.configs[id]
	if !ok {
		return 0, false
	}
	return c.PixelCount, true
}

// ZoneRange implements frame.ZoneLayout, translating a zone id into its
// strip and flat-buffer offsets.
func (s *Service) ZoneRange(id ID) (stripID string, start, end int, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.configs[id]
	if !ok {
		return "", 0, 0, false
	}
	return c.StripID, c.Range.Start, c.Range.End, true
}

// ZoneRender implements frame.ZoneLayout, reporting the live
// brightness/on-off state the pipeline applies after compositing.
func (s *Service) ZoneRender(id ID) (brightness int, isOn bool, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[id]
	if !ok {
		return 0, false, false
	}
	return st.Brightness, st.IsOn, true
}

// ZoneIDs returns every zone id in topology order, used by the pipeline
// to enumerate zones when rendering whole-strip defaults.
func (s *Service) ZoneIDs() []ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ID, len(s.order))
	copy(out, s.order)
	return out
}

// Get returns the config+state for a single zone.
func (s *Service) Get(id ID) (Combined, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.configs[id]
	if !ok {
		return Combined{}, &ErrUnknownZone{ID: id}
	}
	return Combined{Config: c, State: s.states[id]}, nil
}

// All returns every zone in topology order.
func (s *Service) All() []Combined {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Combined, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, Combined{Config: s.configs[id], State: s.states[id]})
	}
	return out
}

// ExcludedFrom returns every zone not in the given set, used by whole-
// strip operations that must skip zones currently under animation or
// transition control.
func (s *Service) ExcludedFrom(excluded map[ID]struct{}) []Combined {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Combined, 0, len(s.order))
	for _, id := range s.order {
		if _, skip := excluded[id]; skip {
			continue
		}
		out = append(out, Combined{Config: s.configs[id], State: s.states[id]})
	}
	return out
}

func (s *Service) mutate(id ID, originClientID string, source bus.SourceType, mutate func(*State) (map[string]interface{}, error)) error {
	s.mu.Lock()
	st, ok := s.states[id]
	if !ok {
		s.mu.Unlock()
		return &ErrUnknownZone{ID: id}
	}
	diff, err := mutate(&st)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.states[id] = st
	onChange := s.onChange
	s.mu.Unlock()

	if s.bus != nil {
		payload := map[string]interface{}{"zone": string(id), "diff": diff}
		s.bus.Publish(bus.NewEvent(bus.KindZoneStateChanged, source, originClientID, payload))
	}
	if onChange != nil {
		onChange()
	}
	return nil
}

// SetColor updates a zone's color.
func (s *Service) SetColor(id ID, c color.Color, originClientID string, source bus.SourceType) error {
	return s.mutate(id, originClientID, source, func(st *State) (map[string]interface{}, error) {
		st.Color = c
		return map[string]interface{}{"color": c}, nil
	})
}

// SetBrightness updates a zone's brightness (0..100, clamped).
func (s *Service) SetBrightness(id ID, percent int, originClientID string, source bus.SourceType) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return s.mutate(id, originClientID, source, func(st *State) (map[string]interface{}, error) {
		st.Brightness = percent
		return map[string]interface{}{"brightness": percent}, nil
	})
}

// SetEnabled toggles is_on.
func (s *Service) SetEnabled(id ID, on bool, originClientID string, source bus.SourceType) error {
	return s.mutate(id, originClientID, source, func(st *State) (map[string]interface{}, error) {
		st.IsOn = on
		return map[string]interface{}{"is_on": on}, nil
	})
}

// SetMode changes a zone's render mode; animationID is recorded only
// when mode is ModeAnimation, cleared otherwise.
func (s *Service) SetMode(id ID, mode Mode, animationID string, originClientID string, source bus.SourceType) error {
	return s.mutate(id, originClientID, source, func(st *State) (map[string]interface{}, error) {
		st.Mode = mode
		if mode == ModeAnimation {
			st.ActiveAnimationID = animationID
		} else {
			st.ActiveAnimationID = ""
		}
		return map[string]interface{}{"mode": mode, "active_animation_id": st.ActiveAnimationID}, nil
	})
}

// SetAnimationParam writes a single named animation parameter.
func (s *Service) SetAnimationParam(id ID, name string, value float64, originClientID string, source bus.SourceType) error {
	return s.mutate(id, originClientID, source, func(st *State) (map[string]interface{}, error) {
		if st.AnimationParams == nil {
			st.AnimationParams = map[string]float64{}
		}
		st.AnimationParams[name] = value
		return map[string]interface{}{"param": name, "value": value}, nil
	})
}

// Snapshot returns a copy of every zone's current state, keyed by id,
// suitable for persisting.
func (s *Service) Snapshot() map[ID]State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[ID]State, len(s.states))
	for id, st := range s.states {
		cp := st
		cp.AnimationParams = make(map[string]float64, len(st.AnimationParams))
		for k, v := range st.AnimationParams {
			cp.AnimationParams[k] = v
		}
		out[id] = cp
	}
	return out
}
