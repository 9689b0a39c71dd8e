package engine

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ayusman/madhubani/internal/calibration"
	"github.com/ayusman/madhubani/internal/command"
	"github.com/ayusman/madhubani/internal/config"
	"github.com/ayusman/madhubani/internal/debounce"
	"github.com/ayusman/madhubani/internal/detector"
	"github.com/ayusman/madhubani/internal/gesture"
)

var (
	t0       = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	frameGap = 33 * time.Millisecond

	neutral = calibration.Values{NeutralMouthGap: 0.05, NeutralBrowGap: 0.10, NeutralEyeAspect: 0.30, Samples: 30}
)

type harness struct {
	t      *testing.T
	engine *Engine
	store  *calibration.Store
	index  uint64
}

// newHarness builds an engine over a store calibrated to detector.NeutralShape.
func newHarness(t *testing.T, mutate func(*config.Tuning)) *harness {
	t.Helper()

	tuning := config.DefaultTuning()
	if mutate != nil {
		mutate(&tuning)
	}

	store := calibration.NewStore(tuning.Calibration, zaptest.NewLogger(t))
	_, err := store.Restore(neutral)
	require.NoError(t, err)

	e, err := New(tuning, store, zaptest.NewLogger(t))
	require.NoError(t, err)
	return &harness{t: t, engine: e, store: store}
}

func (h *harness) frame(hand *detector.Hand, shape *detector.FaceShape) *detector.Frame {
	h.index++
	f := &detector.Frame{Index: h.index, Timestamp: t0.Add(time.Duration(h.index) * frameGap)}
	if hand != nil {
		hc := *hand
		f.Hand = &hc
	}
	if shape != nil {
		face := detector.FaceWith(*shape)
		f.Face = &face
	}
	return f
}

func (h *harness) feed(hand *detector.Hand, shape *detector.FaceShape) []command.Command {
	return h.engine.Process(h.frame(hand, shape))
}

func kinds(cmds []command.Command) []command.Kind {
	out := make([]command.Kind, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, c.Kind)
	}
	return out
}

func shape(mutate func(*detector.FaceShape)) *detector.FaceShape {
	s := detector.NeutralShape
	if mutate != nil {
		mutate(&s)
	}
	return &s
}

func handPtr(h detector.Hand) *detector.Hand { return &h }

func TestScenario_MouthOpenStartsStroke(t *testing.T) {
	h := newHarness(t, func(c *config.Tuning) {
		c.Gestures[gesture.KindMouthOpen] = config.GestureTuning{HoldFrames: 3, Cooldown: "300ms", RearmOnRelease: true}
		c.Bindings[gesture.KindMouthOpen] = command.StrokeStart
	})

	fist := handPtr(detector.FistHand())
	open := shape(func(s *detector.FaceShape) { s.MouthGap = 0.09 }) // 1.8x neutral

	// The hold counts the frame that first sees the signal, so the third
	// open frame emits: Idle, then Candidate twice, then Active.
	phases := []debounce.Phase{h.engine.Phase(gesture.KindMouthOpen)}
	var got [][]command.Kind
	for i := 0; i < 5; i++ {
		got = append(got, kinds(h.feed(fist, open)))
		phases = append(phases, h.engine.Phase(gesture.KindMouthOpen))
	}

	wantPhases := []debounce.Phase{debounce.Idle, debounce.Candidate, debounce.Candidate, debounce.Active, debounce.Active, debounce.Active}
	if diff := cmp.Diff(wantPhases, phases); diff != "" {
		t.Errorf("phases mismatch (-want +got):\n%s", diff)
	}

	wantCmds := [][]command.Kind{{}, {}, {command.StrokeStart}, {}, {}}
	if diff := cmp.Diff(wantCmds, got); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, h.engine.StrokeOpen())

	// Closing the mouth enters cooldown and ends the stroke it started.
	assert.Equal(t, []command.Kind{command.StrokeEnd}, kinds(h.feed(fist, shape(nil))))
	assert.Equal(t, debounce.Cooldown, h.engine.Phase(gesture.KindMouthOpen))
	assert.False(t, h.engine.StrokeOpen())
}

func TestScenario_EyebrowSpikeRejected(t *testing.T) {
	h := newHarness(t, func(c *config.Tuning) {
		c.Bindings[gesture.KindEyebrowRaise] = command.Erase
	})

	palm := handPtr(detector.OpenPalmHand())
	raised := shape(func(s *detector.FaceShape) { s.BrowGap = 0.14 })

	var all []command.Command
	all = append(all, h.feed(palm, raised)...)
	assert.Equal(t, debounce.Candidate, h.engine.Phase(gesture.KindEyebrowRaise))

	for i := 0; i < 4; i++ {
		all = append(all, h.feed(palm, shape(nil))...)
	}
	assert.Empty(t, all)
	assert.Equal(t, debounce.Idle, h.engine.Phase(gesture.KindEyebrowRaise))

	// Held long enough, the same raise does erase.
	for i := 0; i < 3; i++ {
		all = append(all, h.feed(palm, raised)...)
	}
	assert.Equal(t, []command.Kind{command.Erase}, kinds(all))
}

func TestScenario_WinkVersusBlink(t *testing.T) {
	t.Run("left wink undoes once", func(t *testing.T) {
		h := newHarness(t, nil)
		wink := shape(func(s *detector.FaceShape) {
			s.LeftEyeAspect = 0.15
			s.RightEyeAspect = 0.35
		})

		var all []command.Command
		for i := 0; i < 2; i++ {
			all = append(all, h.feed(nil, wink)...)
		}
		assert.Equal(t, []command.Kind{command.Undo}, kinds(all))
		assert.Equal(t, gesture.KindWinkLeft, all[0].Gesture)
		assert.Equal(t, uint64(2), all[0].Frame)

		// Holding the wink does not repeat it.
		for i := 0; i < 10; i++ {
			assert.Empty(t, h.feed(nil, wink))
		}
	})

	t.Run("both eyes closed is a blink", func(t *testing.T) {
		h := newHarness(t, nil)
		blink := shape(func(s *detector.FaceShape) {
			s.LeftEyeAspect = 0.15
			s.RightEyeAspect = 0.15
		})

		var all []command.Command
		for i := 0; i < 3; i++ {
			all = append(all, h.feed(nil, blink)...)
		}
		assert.Empty(t, all)
		assert.Equal(t, debounce.Idle, h.engine.Phase(gesture.KindWinkLeft))
		assert.Equal(t, debounce.Idle, h.engine.Phase(gesture.KindWinkRight))
	})
}

func TestDoubleBlinkClears(t *testing.T) {
	h := newHarness(t, nil)
	closed := shape(func(s *detector.FaceShape) {
		s.LeftEyeAspect = 0.1
		s.RightEyeAspect = 0.1
	})
	open := shape(nil)

	var all []command.Command
	for _, s := range []*detector.FaceShape{closed, closed, open, open, closed, closed, open} {
		all = append(all, h.feed(nil, s)...)
	}
	assert.Equal(t, []command.Kind{command.Clear}, kinds(all))
}

func TestPriority_UndoBeatsErase(t *testing.T) {
	h := newHarness(t, nil)

	palm := handPtr(detector.OpenPalmHand())
	mouth := shape(func(s *detector.FaceShape) { s.MouthGap = 0.1 })
	mouthAndWink := shape(func(s *detector.FaceShape) {
		s.MouthGap = 0.1
		s.LeftEyeAspect = 0.1
	})

	assert.Empty(t, h.feed(palm, mouth))
	assert.Empty(t, h.feed(palm, mouthAndWink))

	// Both machines reach Active on this frame.
	got := h.feed(palm, mouthAndWink)
	assert.Equal(t, []command.Kind{command.Undo}, kinds(got))
	assert.Equal(t, debounce.Active, h.engine.Phase(gesture.KindMouthOpen), "suppressed machine still advances")
	assert.Equal(t, uint64(1), h.engine.Stats().Suppressed)

	// Erasing continues on the next frame.
	got = h.feed(palm, mouth)
	require.Len(t, got, 1)
	assert.Equal(t, command.Erase, got[0].Kind)
	assert.True(t, got[0].HasPosition)
}

func TestDrawStroke(t *testing.T) {
	h := newHarness(t, func(c *config.Tuning) { c.Smoothing = 1 })

	var got []command.Command
	for i := 0; i < 5; i++ {
		x := 0.3 + 0.01*float64(i)
		got = append(got, h.feed(handPtr(detector.PointingHandAt(x, 0.4)), nil)...)
	}
	got = append(got, h.feed(nil, nil)...)

	want := []command.Kind{command.StrokeStart, command.StrokePoint, command.StrokePoint, command.StrokeEnd, command.Idle}
	if diff := cmp.Diff(want, kinds(got)); diff != "" {
		t.Fatalf("commands mismatch (-want +got):\n%s", diff)
	}

	assert.InDelta(t, 0.32, got[0].Position.X, 1e-9)
	assert.InDelta(t, 0.34, got[2].Position.X, 1e-9)
	assert.InDelta(t, 0.4, got[2].Position.Y, 1e-9)
	assert.Equal(t, gesture.KindDraw, got[3].Gesture)
	assert.False(t, h.engine.StrokeOpen())
}

func TestPointerSmoothing(t *testing.T) {
	h := newHarness(t, nil) // smoothing 0.2

	h.feed(handPtr(detector.PointingHandAt(0.5, 0.5)), nil)
	p, ok := h.engine.Pointer()
	require.True(t, ok)
	assert.InDelta(t, 0.5, p.X, 1e-9)

	h.feed(handPtr(detector.PointingHandAt(0.6, 0.5)), nil)
	p, _ = h.engine.Pointer()
	assert.InDelta(t, 0.52, p.X, 1e-9)

	h.feed(nil, nil)
	_, ok = h.engine.Pointer()
	assert.False(t, ok, "pointer resets when the hand is lost")
}

func TestMissingMouthLandmarks(t *testing.T) {
	h := newHarness(t, nil)
	palm := handPtr(detector.OpenPalmHand())

	for i := 0; i < 6; i++ {
		face := detector.FaceWith(detector.FaceShape{MouthGap: 0.3, BrowGap: 0.1, LeftEyeAspect: 0.3, RightEyeAspect: 0.3})
		face.Points = face.Points[:detector.UpperLip]
		f := h.frame(palm, nil)
		f.Face = &face

		assert.Empty(t, h.engine.Process(f))
	}
	assert.Equal(t, debounce.Idle, h.engine.Phase(gesture.KindMouthOpen))
}

func TestEmptyFrames(t *testing.T) {
	h := newHarness(t, nil)
	for i := 0; i < 5; i++ {
		assert.Empty(t, h.feed(nil, nil))
	}
	assert.Nil(t, h.engine.Process(nil))
}

func TestUncalibratedDisablesFacialGestures(t *testing.T) {
	tuning := config.DefaultTuning()
	store := calibration.NewStore(tuning.Calibration, zaptest.NewLogger(t))
	e, err := New(tuning, store, zaptest.NewLogger(t))
	require.NoError(t, err)
	h := &harness{t: t, engine: e, store: store}

	palm := handPtr(detector.OpenPalmHand())
	mouth := shape(func(s *detector.FaceShape) { s.MouthGap = 0.2 })
	for i := 0; i < 5; i++ {
		assert.Empty(t, h.feed(palm, mouth))
	}
	assert.Equal(t, calibration.Uncalibrated, store.Status().State)

	// Drawing needs no calibration.
	var got []command.Command
	for i := 0; i < 3; i++ {
		got = append(got, h.feed(handPtr(detector.PointingHand()), nil)...)
	}
	assert.Equal(t, []command.Kind{command.StrokeStart}, kinds(got))
}

func TestCalibrationGating(t *testing.T) {
	h := newHarness(t, func(c *config.Tuning) {
		c.Calibration.MinSamples = 3
		c.Calibration.TargetSamples = 4
	})
	pointing := handPtr(detector.PointingHand())

	// Open a stroke.
	for i := 0; i < 3; i++ {
		h.feed(pointing, shape(nil))
	}
	require.True(t, h.engine.StrokeOpen())

	closing := h.engine.BeginCalibration()
	assert.Equal(t, []command.Kind{command.StrokeEnd}, kinds(closing))
	assert.Equal(t, calibration.InProgress, h.store.Status().State)

	wide := shape(func(s *detector.FaceShape) { s.MouthGap = 0.08 })
	for i := 0; i < 3; i++ {
		assert.Empty(t, h.feed(pointing, wide), "no commands while calibrating")
	}
	st := h.store.Status()
	assert.Equal(t, calibration.InProgress, st.State)
	assert.Equal(t, 3, st.Samples)

	// The target sample count finalizes the phase.
	assert.Empty(t, h.feed(pointing, wide))
	require.Equal(t, calibration.Ready, h.store.Status().State)
	assert.InDelta(t, 0.08, h.store.Profile().NeutralMouthGap(), 1e-9)
	assert.Equal(t, uint64(4), h.engine.Stats().Calibrated)

	// Machines restarted from Idle.
	got := kinds(h.feed(pointing, wide))
	assert.Empty(t, got)
	assert.Equal(t, debounce.Candidate, h.engine.Phase(gesture.KindDraw))
}

func TestCalibrationAbortKeepsProfile(t *testing.T) {
	h := newHarness(t, nil)
	prev := h.store.Profile()

	h.engine.BeginCalibration()
	h.feed(nil, shape(func(s *detector.FaceShape) { s.MouthGap = 0.3 }))
	assert.True(t, h.engine.AbortCalibration())

	assert.Same(t, prev, h.store.Profile())
	assert.Equal(t, calibration.Ready, h.store.Status().State)
	assert.False(t, h.engine.AbortCalibration())
}

func TestCalibrationFinalizeWithoutSamples(t *testing.T) {
	h := newHarness(t, nil)
	prev := h.store.Profile()

	h.engine.BeginCalibration()
	_, err := h.engine.FinalizeCalibration()
	require.ErrorIs(t, err, calibration.ErrInsufficientSamples)
	assert.Same(t, prev, h.store.Profile())

	// The previous profile still drives the wink detector.
	wink := shape(func(s *detector.FaceShape) { s.LeftEyeAspect = 0.1 })
	var all []command.Command
	for i := 0; i < 2; i++ {
		all = append(all, h.feed(nil, wink)...)
	}
	assert.Equal(t, []command.Kind{command.Undo}, kinds(all))
}

func TestStaleFramesIgnored(t *testing.T) {
	h := newHarness(t, nil)
	f := h.frame(nil, nil)
	h.engine.Process(f)
	assert.Nil(t, h.engine.Process(f))
	assert.Equal(t, uint64(1), h.engine.Stats().Stale)
	assert.Equal(t, uint64(1), h.engine.Stats().Frames)
}

func TestUnboundGesture(t *testing.T) {
	h := newHarness(t, func(c *config.Tuning) {
		c.Bindings[gesture.KindWinkLeft] = command.Idle
	})
	wink := shape(func(s *detector.FaceShape) { s.LeftEyeAspect = 0.1 })
	for i := 0; i < 4; i++ {
		assert.Empty(t, h.feed(nil, wink))
	}
	assert.NotEqual(t, debounce.Idle, h.engine.Phase(gesture.KindWinkLeft))
}

func TestEraseNeedsPointer(t *testing.T) {
	h := newHarness(t, nil)
	mouth := shape(func(s *detector.FaceShape) { s.MouthGap = 0.1 })
	for i := 0; i < 5; i++ {
		assert.Empty(t, h.feed(nil, mouth))
	}
}

func TestNew_InvalidTuning(t *testing.T) {
	tuning := config.DefaultTuning()
	tuning.Smoothing = 0
	_, err := New(tuning, calibration.NewStore(tuning.Calibration, nil), nil)
	assert.ErrorIs(t, err, config.ErrInvalid)

	_, err = New(config.DefaultTuning(), nil, nil)
	assert.Error(t, err)
}

func TestInterpret_ReportsAutoFinalizeOnly(t *testing.T) {
	h := newHarness(t, func(c *config.Tuning) {
		c.Calibration.MinSamples = 2
		c.Calibration.TargetSamples = 3
	})

	// Restoring a profile is not a calibration completed by a frame.
	_, err := h.engine.RestoreProfile(calibration.Values{NeutralMouthGap: 0.07, NeutralBrowGap: 0.1, NeutralEyeAspect: 0.3, Samples: 9})
	require.NoError(t, err)
	assert.Nil(t, h.engine.Interpret(h.frame(nil, shape(nil))).Calibrated)

	h.engine.BeginCalibration()
	assert.Nil(t, h.engine.Interpret(h.frame(nil, shape(nil))).Calibrated)
	assert.Nil(t, h.engine.Interpret(h.frame(nil, shape(nil))).Calibrated)

	res := h.engine.Interpret(h.frame(nil, shape(nil)))
	require.NotNil(t, res.Calibrated)
	assert.Same(t, h.engine.Calibration().Profile(), res.Calibrated)
	assert.Equal(t, 3, res.Calibrated.Samples())
	assert.Empty(t, res.Commands)

	assert.Nil(t, h.engine.Interpret(h.frame(nil, shape(nil))).Calibrated)
}
