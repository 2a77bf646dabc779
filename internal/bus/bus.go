package bus

import (
	"fmt"
	"sync"
	"time"
)

// Logger is the minimal sink the bus needs to isolate handler failures.
// *zap.SugaredLogger satisfies this; tests can pass a stub.
type Logger interface {
	Errorw(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Errorw(string, ...interface{}) {}

// Middleware inspects or rewrites an event before dispatch. Returning
// keep=false halts the publication entirely.
type Middleware func(Event) (rewritten Event, keep bool)

// HandlerFunc is a synchronous subscriber callback. It must not
// block more than ~1ms; the bus does not enforce this, it only documents
// the contract subscribers are expected to honor.
type HandlerFunc func(Event)

// DispatchMode controls how a subscription's handler is invoked relative
// to the publishing goroutine and to other events for the same
// subscriber.
type DispatchMode int

const (
	// ModeSync calls the handler inline during Publish.
	ModeSync DispatchMode = iota
	// ModeAsyncSequential queues the event onto a per-subscription buffer
	// drained by one dedicated goroutine, preserving publish order for
	// this subscriber without blocking Publish on slow handlers.
	ModeAsyncSequential
	// ModeAsyncParallel starts the handler in its own goroutine per
	// event; the bus makes no ordering guarantee across concurrent
	// invocations for this subscriber.
	ModeAsyncParallel
)

// Filter decides whether a subscriber wants a given event; nil accepts
// everything of the subscribed Kind.
type Filter func(Event) bool

// Subscription is the handle returned by Subscribe; Unsubscribe tears it
// down. It intentionally exposes no back-reference capability into the
// bus beyond its own id — this is a deliberate "weak capability":
// nothing outside this package can enumerate or touch other
// subscriptions through it.
type Subscription struct {
	id      uint64
	kind    Kind
	bus     *Bus
	closeCh chan struct{}
	once    sync.Once
}

// Unsubscribe removes this subscription from the bus. Safe to call more
// than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.remove(s.kind, s.id)
		close(s.closeCh)
	})
}

type subscriber struct {
	id      uint64
	mode    DispatchMode
	filter  Filter
	handler HandlerFunc
	queue   chan Event // used by ModeAsyncSequential only
}

// Config tunes the bus's bounded structures.
type Config struct {
	HistoryCapacity     int // default 100
	AsyncQueueCapacity  int // default 64, per ModeAsyncSequential subscriber
}

// DefaultConfig returns the default bus capacities.
func DefaultConfig() Config {
	return Config{HistoryCapacity: 100, AsyncQueueCapacity: 64}
}

// Bus is the bounded, fault-isolated pub/sub router (C4).
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Kind][]*subscriber
	middleware  []Middleware
	history     *ring
	nextID      uint64
	cfg         Config
	log         Logger
}

// New builds a Bus with the given config; a zero Config is replaced with
// DefaultConfig. log may be nil to discard isolation diagnostics.
func New(cfg Config, log Logger) *Bus {
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = DefaultConfig().HistoryCapacity
	}
	if cfg.AsyncQueueCapacity <= 0 {
		cfg.AsyncQueueCapacity = DefaultConfig().AsyncQueueCapacity
	}
	if log == nil {
		log = nopLogger{}
	}
	return &Bus{
		subscribers: make(map[Kind][]*subscriber),
		history:     newRing(cfg.HistoryCapacity),
		cfg:         cfg,
		log:         log,
	}
}

// Use registers a middleware at the end of the chain.
func (b *Bus) Use(mw Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, mw)
}

// Subscribe registers handler for events of kind, dispatched per mode and
// narrowed by the optional filter.
func (b *Bus) Subscribe(kind Kind, handler HandlerFunc, mode DispatchMode, filter Filter) *Subscription {
	b.mu.Lock()
	id := b.nextID
	b.nextID++

	sub := &subscriber{id: id, mode: mode, filter: filter, handler: handler}
	if mode == ModeAsyncSequential {
		sub.queue = make(chan Event, b.cfg.AsyncQueueCapacity)
		go b.pump(sub)
	}
	b.subscribers[kind] = append(b.subscribers[kind], sub)
	b.mu.Unlock()

	return &Subscription{id: id, kind: kind, bus: b, closeCh: make(chan struct{})}
}

func (b *Bus) remove(kind Kind, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[kind]
	for i, s := range subs {
		if s.id == id {
			if s.queue != nil {
				close(s.queue)
			}
			b.subscribers[kind] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// pump drains one ModeAsyncSequential subscriber's queue in FIFO order,
// isolating its handler's panics the same way dispatch does.
func (b *Bus) pump(sub *subscriber) {
	for e := range sub.queue {
		b.invoke(sub, e)
	}
}

// Publish runs the middleware chain, records history, then dispatches to
// subscribers of the event's kind in registration order.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	for _, mw := range b.middleware {
		var keep bool
		e, keep = mw(e)
		if !keep {
			return
		}
	}

	b.history.push(e)

	b.mu.RLock()
	subs := append([]*subscriber(nil), b.subscribers[e.Kind]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.filter != nil && !sub.filter(e) {
			continue
		}
		switch sub.mode {
		case ModeSync:
			b.invoke(sub, e)
		case ModeAsyncSequential:
			select {
			case sub.queue <- e:
			default:
				b.log.Errorw("bus: subscriber queue full, dropping event", "kind", e.Kind, "subscriber", sub.id)
			}
		case ModeAsyncParallel:
			go b.invoke(sub, e)
		}
	}
}

// invoke calls a handler, converting a panic into a logged isolation
// failure so one bad subscriber never stops the others.
func (b *Bus) invoke(sub *subscriber, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorw("bus: handler panicked", "kind", e.Kind, "subscriber", sub.id, "panic", fmt.Sprint(r))
		}
	}()
	sub.handler(e)
}

// History returns up to n most recent events, newest last.
func (b *Bus) History(n int) []Event {
	return b.history.snapshot(n)
}
