// Package debounce turns noisy per-frame gesture signals into discrete
// transitions. Every gesture kind runs its own small state machine:
//
//	Idle -> Candidate -> Active -> Cooldown -> Idle
//
// A signal must hold for HoldFrames consecutive frames before it becomes
// Active, and a gesture that left Active cannot fire again until its
// refractory period has elapsed.
package debounce

import (
	"fmt"
	"time"
)

// Phase is the state of one gesture machine.
type Phase int

const (
	Idle Phase = iota
	Candidate
	Active
	Cooldown
)

var phaseNames = [...]string{"idle", "candidate", "active", "cooldown"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Timing configures one gesture machine.
type Timing struct {
	// HoldFrames is the number of consecutive true frames, counting the
	// first, required to enter Active. Values below 1 mean 1.
	HoldFrames int
	// CooldownFrames and Cooldown are the refractory period. Both must
	// elapse before the machine leaves Cooldown.
	CooldownFrames int
	Cooldown       time.Duration
	// Continuous gestures report Hold on every Active frame.
	Continuous bool
	// Momentary gestures leave Active after a single frame even while the
	// signal is still true.
	Momentary bool
	// RearmOnRelease keeps the machine in Cooldown until the signal is false.
	RearmOnRelease bool
	// Repeat is the number of activations within RepeatWindow needed to fire.
	// Values below 2 fire on every activation.
	Repeat       int
	RepeatWindow time.Duration
}

// Transition is the outcome of one Step.
type Transition struct {
	From, To Phase
	// Fire is set on the step that enters Active, unless a Repeat
	// requirement is still unmet.
	Fire bool
	// Hold is set on every Active step of a continuous gesture, including
	// the entering step.
	Hold bool
	// Release is set on the step that leaves Active.
	Release bool
}

// Changed reports whether the phase changed.
func (t Transition) Changed() bool { return t.From != t.To }

// Machine is the state of one gesture. It is not safe for concurrent use.
type Machine struct {
	timing Timing

	phase      Phase
	held       int
	cooled     int
	coolUntil  time.Time
	activation []time.Time
	changedAt  time.Time
}

// NewMachine creates an Idle machine.
func NewMachine(t Timing) *Machine {
	if t.HoldFrames < 1 {
		t.HoldFrames = 1
	}
	return &Machine{timing: t}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// Timing returns the machine's configuration.
func (m *Machine) Timing() Timing { return m.timing }

// ChangedAt returns when the phase last changed, zero if it never did.
func (m *Machine) ChangedAt() time.Time { return m.changedAt }

// Reset returns the machine to Idle and forgets all counters.
func (m *Machine) Reset() {
	m.phase = Idle
	m.held = 0
	m.cooled = 0
	m.coolUntil = time.Time{}
	m.activation = m.activation[:0]
	m.changedAt = time.Time{}
}

// Step advances the machine by one frame.
func (m *Machine) Step(active bool, now time.Time) Transition {
	tr := Transition{From: m.phase}

	switch m.phase {
	case Idle:
		if active {
			m.arm(now, &tr)
		}

	case Candidate:
		if !active {
			m.phase = Idle
			m.held = 0
			break
		}
		m.held++
		if m.held >= m.timing.HoldFrames {
			m.activate(now, &tr)
		}

	case Active:
		switch {
		case m.timing.Momentary || !active:
			m.cool(now)
			tr.Release = true
		case m.timing.Continuous:
			tr.Hold = true
		}

	case Cooldown:
		m.cooled++
		if m.cooled < m.timing.CooldownFrames || now.Before(m.coolUntil) {
			break
		}
		if active && m.timing.RearmOnRelease {
			break
		}
		m.phase = Idle
		if active {
			m.arm(now, &tr)
		}
	}

	tr.To = m.phase
	if tr.Changed() {
		m.changedAt = now
	}
	return tr
}

// arm handles a true signal seen from Idle.
func (m *Machine) arm(now time.Time, tr *Transition) {
	m.held = 1
	if m.held >= m.timing.HoldFrames {
		m.activate(now, tr)
		return
	}
	m.phase = Candidate
}

func (m *Machine) activate(now time.Time, tr *Transition) {
	m.phase = Active
	m.held = 0
	tr.Hold = m.timing.Continuous
	tr.Fire = m.countActivation(now)
}

func (m *Machine) cool(now time.Time) {
	m.phase = Cooldown
	m.cooled = 0
	m.coolUntil = now.Add(m.timing.Cooldown)
}

// countActivation records an activation and reports whether the Repeat
// requirement is met.
func (m *Machine) countActivation(now time.Time) bool {
	if m.timing.Repeat < 2 {
		return true
	}

	kept := m.activation[:0]
	for _, at := range m.activation {
		if now.Sub(at) <= m.timing.RepeatWindow {
			kept = append(kept, at)
		}
	}
	m.activation = append(kept, now)

	if len(m.activation) >= m.timing.Repeat {
		m.activation = m.activation[:0]
		return true
	}
	return false
}
