package debounce

import (
	"time"

	"github.com/ayusman/madhubani/internal/gesture"
)

// Emission is the transition of one gesture machine on one frame, together
// with the raw signal that drove it.
type Emission struct {
	Kind gesture.Kind
	Transition
	Signal gesture.Signal
}

// Debouncer owns one Machine per gesture kind. It is not safe for
// concurrent use; a single session drives it one frame at a time.
type Debouncer struct {
	order    []gesture.Kind
	machines map[gesture.Kind]*Machine
}

// New creates a Debouncer with a machine for every kind in timings.
// Kinds are stepped in gesture.Kinds order.
func New(timings map[gesture.Kind]Timing) *Debouncer {
	d := &Debouncer{machines: make(map[gesture.Kind]*Machine, len(timings))}
	for _, k := range gesture.Kinds {
		if t, ok := timings[k]; ok {
			d.order = append(d.order, k)
			d.machines[k] = NewMachine(t)
		}
	}
	return d
}

// Step advances every machine by one frame. Kinds without a signal in
// signals are stepped with a false signal. The result has one Emission per
// machine, in a stable order.
func (d *Debouncer) Step(signals []gesture.Signal, now time.Time) []Emission {
	byKind := make(map[gesture.Kind]gesture.Signal, len(signals))
	for _, s := range signals {
		byKind[s.Kind] = s
	}

	out := make([]Emission, 0, len(d.order))
	for _, k := range d.order {
		sig, ok := byKind[k]
		if !ok {
			sig = gesture.Signal{Kind: k}
		}
		out = append(out, Emission{
			Kind:       k,
			Transition: d.machines[k].Step(sig.Active, now),
			Signal:     sig,
		})
	}
	return out
}

// Reset returns every machine to Idle.
func (d *Debouncer) Reset() {
	for _, m := range d.machines {
		m.Reset()
	}
}

// Phase returns the phase of kind, Idle for an unknown kind.
func (d *Debouncer) Phase(kind gesture.Kind) Phase {
	if m, ok := d.machines[kind]; ok {
		return m.Phase()
	}
	return Idle
}

// Phases returns a snapshot of every machine's phase.
func (d *Debouncer) Phases() map[gesture.Kind]Phase {
	out := make(map[gesture.Kind]Phase, len(d.machines))
	for k, m := range d.machines {
		out[k] = m.Phase()
	}
	return out
}

// Timing returns the timing of kind.
func (d *Debouncer) Timing(kind gesture.Kind) (Timing, bool) {
	m, ok := d.machines[kind]
	if !ok {
		return Timing{}, false
	}
	return m.Timing(), true
}
