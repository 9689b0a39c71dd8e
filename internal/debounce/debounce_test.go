package debounce

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/madhubani/internal/gesture"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

const frame = 33 * time.Millisecond

// run steps m over signals, one frame apart, and returns the phases and
// the number of Fire transitions.
func run(m *Machine, signals []bool) ([]Phase, int) {
	phases := make([]Phase, 0, len(signals))
	fired := 0
	for i, s := range signals {
		tr := m.Step(s, t0.Add(time.Duration(i)*frame))
		if tr.Fire {
			fired++
		}
		phases = append(phases, tr.To)
	}
	return phases, fired
}

func TestMachine_HoldThenFire(t *testing.T) {
	m := NewMachine(Timing{HoldFrames: 3, CooldownFrames: 5})

	phases, fired := run(m, []bool{true, true, true, true, true})

	want := []Phase{Candidate, Candidate, Active, Active, Active}
	if diff := cmp.Diff(want, phases); diff != "" {
		t.Errorf("phases mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, fired)
}

func TestMachine_NoiseRejected(t *testing.T) {
	for hold := 2; hold <= 5; hold++ {
		for length := 1; length < hold; length++ {
			m := NewMachine(Timing{HoldFrames: hold})

			signals := make([]bool, 0, length+3)
			for i := 0; i < length; i++ {
				signals = append(signals, true)
			}
			signals = append(signals, false, false, false)

			phases, fired := run(m, signals)
			assert.Zero(t, fired, "hold=%d length=%d", hold, length)
			assert.NotContains(t, phases, Active, "hold=%d length=%d", hold, length)
			assert.Equal(t, Idle, m.Phase())
		}
	}
}

func TestMachine_SingleEmissionWhileHeld(t *testing.T) {
	m := NewMachine(Timing{HoldFrames: 2, CooldownFrames: 3})

	signals := make([]bool, 40)
	for i := range signals {
		signals[i] = true
	}
	_, fired := run(m, signals)
	assert.Equal(t, 1, fired)
	assert.Equal(t, Active, m.Phase())
}

func TestMachine_CooldownBlocksRetrigger(t *testing.T) {
	m := NewMachine(Timing{HoldFrames: 1, CooldownFrames: 4})

	phases, fired := run(m, []bool{true, false, true, true, true, false, true})

	want := []Phase{Active, Cooldown, Cooldown, Cooldown, Cooldown, Idle, Active}
	if diff := cmp.Diff(want, phases); diff != "" {
		t.Errorf("phases mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, fired)
}

func TestMachine_CooldownDuration(t *testing.T) {
	m := NewMachine(Timing{HoldFrames: 1, Cooldown: 300 * time.Millisecond})

	require.True(t, m.Step(true, t0).Fire)
	m.Step(false, t0.Add(frame))
	require.Equal(t, Cooldown, m.Phase())

	m.Step(false, t0.Add(200*time.Millisecond))
	assert.Equal(t, Cooldown, m.Phase(), "refractory period not over")

	m.Step(false, t0.Add(frame+300*time.Millisecond))
	assert.Equal(t, Idle, m.Phase())
}

func TestMachine_CooldownEndsIntoCandidate(t *testing.T) {
	m := NewMachine(Timing{HoldFrames: 2, CooldownFrames: 1})

	phases, _ := run(m, []bool{true, true, false, true, true})

	want := []Phase{Candidate, Active, Cooldown, Candidate, Active}
	if diff := cmp.Diff(want, phases); diff != "" {
		t.Errorf("phases mismatch (-want +got):\n%s", diff)
	}
}

func TestMachine_Momentary(t *testing.T) {
	m := NewMachine(Timing{HoldFrames: 2, Momentary: true, RearmOnRelease: true})

	phases, fired := run(m, []bool{true, true, true, true, true, false, true, true})

	want := []Phase{Candidate, Active, Cooldown, Cooldown, Cooldown, Idle, Candidate, Active}
	if diff := cmp.Diff(want, phases); diff != "" {
		t.Errorf("phases mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, fired)
}

func TestMachine_Continuous(t *testing.T) {
	m := NewMachine(Timing{HoldFrames: 2, Continuous: true})

	var holds, releases int
	for i, s := range []bool{true, true, true, true, false} {
		tr := m.Step(s, t0.Add(time.Duration(i)*frame))
		if tr.Hold {
			holds++
		}
		if tr.Release {
			releases++
		}
	}
	assert.Equal(t, 3, holds)
	assert.Equal(t, 1, releases)
}

func TestMachine_Repeat(t *testing.T) {
	timing := Timing{HoldFrames: 1, Momentary: true, RearmOnRelease: true, Repeat: 2, RepeatWindow: 500 * time.Millisecond}

	t.Run("two blinks within the window", func(t *testing.T) {
		m := NewMachine(timing)
		at := t0
		var fires []bool
		for _, s := range []bool{true, false, false, true} {
			fires = append(fires, m.Step(s, at).Fire)
			at = at.Add(100 * time.Millisecond)
		}
		assert.Equal(t, []bool{false, false, false, true}, fires)
	})

	t.Run("blinks too far apart", func(t *testing.T) {
		m := NewMachine(timing)
		assert.False(t, m.Step(true, t0).Fire)
		m.Step(false, t0.Add(100*time.Millisecond))
		m.Step(false, t0.Add(200*time.Millisecond))
		assert.False(t, m.Step(true, t0.Add(time.Second)).Fire)
	})
}

func TestMachine_Reset(t *testing.T) {
	m := NewMachine(Timing{HoldFrames: 3})
	m.Step(true, t0)
	m.Step(true, t0.Add(frame))
	require.Equal(t, Candidate, m.Phase())

	m.Reset()
	assert.Equal(t, Idle, m.Phase())
	assert.True(t, m.ChangedAt().IsZero())

	// The hold count starts over.
	m.Step(true, t0.Add(2*frame))
	m.Step(true, t0.Add(3*frame))
	assert.Equal(t, Candidate, m.Phase())
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "cooldown", Cooldown.String())
	assert.Equal(t, "Phase(9)", Phase(9).String())
}

func TestDebouncer_Step(t *testing.T) {
	d := New(map[gesture.Kind]Timing{
		gesture.KindMouthOpen: {HoldFrames: 3},
		gesture.KindWinkLeft:  {HoldFrames: 2, Momentary: true},
	})

	signals := []gesture.Signal{{Kind: gesture.KindMouthOpen, Active: true, Value: 1.8}}

	var out []Emission
	for i := 0; i < 3; i++ {
		out = d.Step(signals, t0.Add(time.Duration(i)*frame))
	}

	require.Len(t, out, 2)
	assert.Equal(t, gesture.KindMouthOpen, out[0].Kind)
	assert.True(t, out[0].Fire)
	assert.InDelta(t, 1.8, out[0].Signal.Value, 1e-9)

	assert.Equal(t, gesture.KindWinkLeft, out[1].Kind, "missing signals step as false")
	assert.Equal(t, Idle, out[1].To)

	assert.Equal(t, Active, d.Phase(gesture.KindMouthOpen))
	assert.Equal(t, Idle, d.Phase(gesture.KindBlink), "unknown kind")

	d.Reset()
	for _, p := range d.Phases() {
		assert.Equal(t, Idle, p)
	}

	timing, ok := d.Timing(gesture.KindWinkLeft)
	require.True(t, ok)
	assert.True(t, timing.Momentary)
}
