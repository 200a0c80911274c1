package dispatch

import (
	"log/slog"
	"reflect"
	"runtime/debug"
	"sync"

	"github.com/vango-dev/boardsync/pkg/protocol"
)

// Handler receives envelopes of the kinds it is subscribed to.
//
// Handlers are identified by interface equality, so implementations
// should be pointer types. Use Func to wrap a plain function.
type Handler interface {
	HandleEnvelope(env protocol.Envelope)
}

// HandlerFunc adapts a function to Handler. Function values are not
// comparable; wrap them with Func when the handler must be unsubscribed
// later.
type HandlerFunc func(env protocol.Envelope)

// HandleEnvelope calls f(env).
func (f HandlerFunc) HandleEnvelope(env protocol.Envelope) { f(env) }

type funcHandler struct {
	fn func(protocol.Envelope)
}

func (h *funcHandler) HandleEnvelope(env protocol.Envelope) { h.fn(env) }

// Func returns a comparable handle for fn. Subscribing the returned
// handle twice is idempotent and it can be passed to Unsubscribe.
func Func(fn func(env protocol.Envelope)) Handler {
	return &funcHandler{fn: fn}
}

// Observer is notified of every dispatched envelope before handlers run,
// including envelopes of unknown kind.
type Observer interface {
	ObserveEnvelope(env protocol.Envelope, handlers int)
}

// PanicReporter is notified when a handler panics.
type PanicReporter interface {
	HandlerPanicked(kind protocol.Kind, recovered any)
}

// Registry fans envelopes out to the handlers subscribed to their kind.
// It is safe for concurrent use. Handlers run on the dispatching goroutine
// in registration order.
type Registry struct {
	mu        sync.RWMutex
	handlers  map[protocol.Kind][]Handler
	observers []Observer
	panics    PanicReporter
	logger    *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for handler panics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// WithPanicReporter sets the panic reporter.
func WithPanicReporter(p PanicReporter) Option {
	return func(r *Registry) {
		r.panics = p
	}
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		handlers: make(map[protocol.Kind][]Handler),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddObserver registers an observer after construction.
func (r *Registry) AddObserver(o Observer) {
	if o == nil {
		return
	}
	r.mu.Lock()
	r.observers = append(r.observers, o)
	r.mu.Unlock()
}

// Subscribe registers h for envelopes of kind. Subscribing the same
// handler twice for the same kind has no effect. Subscriptions to
// KindUnknown are ignored.
func (r *Registry) Subscribe(kind protocol.Kind, h Handler) {
	if h == nil || !kind.Known() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if indexOf(r.handlers[kind], h) >= 0 {
		return
	}
	r.handlers[kind] = append(r.handlers[kind], h)
}

// SubscribeFunc registers fn for kind and returns a function that removes
// it again.
func (r *Registry) SubscribeFunc(kind protocol.Kind, fn func(protocol.Envelope)) (cancel func()) {
	h := Func(fn)
	r.Subscribe(kind, h)
	return func() { r.Unsubscribe(kind, h) }
}

// Unsubscribe removes h from kind. Removing a handler that was never
// subscribed is a no-op.
func (r *Registry) Unsubscribe(kind protocol.Kind, h Handler) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.handlers[kind]
	i := indexOf(list, h)
	if i < 0 {
		return
	}
	next := make([]Handler, 0, len(list)-1)
	next = append(next, list[:i]...)
	next = append(next, list[i+1:]...)
	if len(next) == 0 {
		delete(r.handlers, kind)
		return
	}
	r.handlers[kind] = next
}

// Count returns the number of handlers subscribed to kind.
func (r *Registry) Count(kind protocol.Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[kind])
}

// Dispatch invokes every handler subscribed to env.Kind with the full
// envelope and returns how many handlers ran. Envelopes of unknown kind
// reach no handler. A panicking handler is recovered and logged; the
// remaining handlers still run.
func (r *Registry) Dispatch(env protocol.Envelope) int {
	r.mu.RLock()
	var list []Handler
	if env.Kind.Known() {
		list = r.handlers[env.Kind]
	}
	observers := r.observers
	r.mu.RUnlock()

	for _, o := range observers {
		o.ObserveEnvelope(env, len(list))
	}
	for _, h := range list {
		r.invoke(h, env)
	}
	return len(list)
}

func (r *Registry) invoke(h Handler, env protocol.Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("handler panic",
				"kind", env.Name(),
				"panic", rec,
				"stack", string(debug.Stack()))
			if r.panics != nil {
				r.panics.HandlerPanicked(env.Kind, rec)
			}
		}
	}()
	h.HandleEnvelope(env)
}

// indexOf finds h in list. Handlers of non-comparable dynamic types never
// match, so each Subscribe of such a value adds a new entry.
func indexOf(list []Handler, h Handler) int {
	if !reflect.TypeOf(h).Comparable() {
		return -1
	}
	for i, existing := range list {
		if reflect.TypeOf(existing) == reflect.TypeOf(h) && existing == h {
			return i
		}
	}
	return -1
}
