package command

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Canvas is the external drawing surface. Apply must not block.
type Canvas interface {
	Apply(Command)
}

// CanvasFunc adapts a function to Canvas.
type CanvasFunc func(Command)

// Apply calls f(c).
func (f CanvasFunc) Apply(c Command) { f(c) }

// Dispatcher forwards commands, unmodified and in order, to a canvas and to
// any number of subscribers. It does no filtering of its own.
type Dispatcher struct {
	canvas Canvas
	log    *zap.Logger

	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool

	dispatched atomic.Uint64
	dropped    atomic.Uint64
	last       atomic.Pointer[Command]
}

// Subscription receives dispatched commands on C. Commands are dropped for
// a subscriber whose buffer is full.
type Subscription struct {
	C       <-chan Command
	ch      chan Command
	dropped atomic.Uint64
	once    sync.Once
}

// Dropped returns how many commands this subscriber missed.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// NewDispatcher creates a Dispatcher. canvas may be nil.
func NewDispatcher(canvas Canvas, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		canvas: canvas,
		log:    log.Named("dispatch"),
		subs:   make(map[*Subscription]struct{}),
	}
}

// Dispatch forwards c to the canvas and every subscriber.
func (d *Dispatcher) Dispatch(c Command) {
	if d.canvas != nil {
		d.canvas.Apply(c)
	}
	d.dispatched.Add(1)
	d.last.Store(&c)

	d.mu.RLock()
	defer d.mu.RUnlock()

	for s := range d.subs {
		select {
		case s.ch <- c:
		default:
			s.dropped.Add(1)
			if d.dropped.Add(1)%100 == 1 {
				d.log.Warn("subscriber too slow, dropping commands", zap.Uint64("dropped_total", d.dropped.Load()))
			}
		}
	}
}

// DispatchAll dispatches cmds in order.
func (d *Dispatcher) DispatchAll(cmds []Command) {
	for _, c := range cmds {
		d.Dispatch(c)
	}
}

// Subscribe registers a subscriber with the given buffer size.
// It returns nil after Close.
func (d *Dispatcher) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Command, buffer)
	s := &Subscription{C: ch, ch: ch}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.subs[s] = struct{}{}
	return s
}

// Unsubscribe removes s and closes its channel.
func (d *Dispatcher) Unsubscribe(s *Subscription) {
	if s == nil {
		return
	}
	d.mu.Lock()
	delete(d.subs, s)
	d.mu.Unlock()
	s.once.Do(func() { close(s.ch) })
}

// Close unsubscribes everyone.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	subs := d.subs
	d.subs = make(map[*Subscription]struct{})
	d.closed = true
	d.mu.Unlock()

	for s := range subs {
		s.once.Do(func() { close(s.ch) })
	}
}

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	Dispatched  uint64 `json:"dispatched"`
	Dropped     uint64 `json:"dropped"`
	Subscribers int    `json:"subscribers"`
}

// Stats returns the current counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.RLock()
	n := len(d.subs)
	d.mu.RUnlock()
	return Stats{Dispatched: d.dispatched.Load(), Dropped: d.dropped.Load(), Subscribers: n}
}

// Last returns the most recently dispatched command.
func (d *Dispatcher) Last() (Command, bool) {
	c := d.last.Load()
	if c == nil {
		return Command{}, false
	}
	return *c, true
}

// Recorder is a Canvas that keeps every command it receives.
type Recorder struct {
	mu   sync.Mutex
	cmds []Command
}

// Apply implements Canvas.
func (r *Recorder) Apply(c Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, c)
}

// Commands returns a copy of the recorded commands.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Command, len(r.cmds))
	copy(out, r.cmds)
	return out
}

// Kinds returns the kinds of the recorded commands.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.cmds))
	for i, c := range r.cmds {
		out[i] = c.Kind
	}
	return out
}

// Reset forgets all recorded commands.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = nil
}
