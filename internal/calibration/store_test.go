package calibration

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ayusman/madhubani/internal/detector"
)

func faceFrame(shape detector.FaceShape) *detector.Frame {
	face := detector.FaceWith(shape)
	return &detector.Frame{Face: &face}
}

func testParams() Params {
	p := DefaultParams()
	p.MinSamples = 3
	p.TargetSamples = 0
	return p
}

func TestMeasure(t *testing.T) {
	face := detector.FaceWith(detector.FaceShape{MouthGap: 0.08, BrowGap: 0.12, LeftEyeAspect: 0.15, RightEyeAspect: 0.35})

	m, ok := Measure(&face)
	require.True(t, ok)
	assert.InDelta(t, 0.08, m.MouthGap, 1e-9)
	assert.InDelta(t, 0.12, m.BrowGap, 1e-9)
	assert.InDelta(t, 0.15, m.LeftEyeAspect, 1e-9)
	assert.InDelta(t, 0.35, m.RightEyeAspect, 1e-9)
	assert.InDelta(t, 0.25, m.EyeAspect(), 1e-9)
}

func TestMeasure_MissingLandmarks(t *testing.T) {
	face := detector.NeutralFace()
	face.Points = face.Points[:detector.UpperLip] // drops the lips and everything after

	_, ok := Measure(&face)
	assert.False(t, ok)

	_, ok = Measure(nil)
	assert.False(t, ok)
}

func TestStore_StartsUncalibrated(t *testing.T) {
	s := NewStore(testParams(), zaptest.NewLogger(t))

	st := s.Status()
	assert.Equal(t, Uncalibrated, st.State)
	assert.False(t, st.Calibrated)
	assert.Nil(t, s.Profile())
	assert.Nil(t, s.Thresholds())
}

func TestStore_CalibrateAndFreeze(t *testing.T) {
	s := NewStore(testParams(), zaptest.NewLogger(t))
	s.Begin()

	shapes := []detector.FaceShape{
		{MouthGap: 0.04, BrowGap: 0.09, LeftEyeAspect: 0.28, RightEyeAspect: 0.30},
		{MouthGap: 0.05, BrowGap: 0.10, LeftEyeAspect: 0.30, RightEyeAspect: 0.30},
		{MouthGap: 0.06, BrowGap: 0.11, LeftEyeAspect: 0.32, RightEyeAspect: 0.30},
	}
	for i, shape := range shapes {
		st, err := s.Submit(faceFrame(shape))
		require.NoError(t, err)
		assert.Equal(t, InProgress, st.State)
		assert.Equal(t, i+1, st.Samples)
	}

	// Frozen thresholds are withheld while the phase runs.
	assert.Nil(t, s.Thresholds())

	p, err := s.Finalize()
	require.NoError(t, err)
	assert.InDelta(t, 0.05, p.NeutralMouthGap(), 1e-9)
	assert.InDelta(t, 0.10, p.NeutralBrowGap(), 1e-9)
	assert.InDelta(t, 0.30, p.NeutralEyeAspect(), 1e-9)
	assert.Equal(t, 3, p.Samples())
	assert.Greater(t, p.Spread().MouthGap, 0.0)

	st := s.Status()
	assert.Equal(t, Ready, st.State)
	assert.True(t, st.Calibrated)

	th := s.Thresholds()
	require.NotNil(t, th)
	assert.InDelta(t, 1.6, th.MouthOpenRatio, 1e-9)
	assert.InDelta(t, 0.18, th.EyeClosedAspect, 1e-9)
	assert.InDelta(t, 1.8, th.MouthRatio(0.09), 1e-9)
}

func TestStore_IgnoresFramesWithoutFace(t *testing.T) {
	s := NewStore(testParams(), zaptest.NewLogger(t))
	s.Begin()

	hand := detector.PointingHand()
	partial := detector.NeutralFace()
	partial.Points = partial.Points[:100]

	frames := []*detector.Frame{
		{},
		{Hand: &hand},
		{Face: &partial},
	}
	for _, f := range frames {
		st, err := s.Submit(f)
		require.NoError(t, err)
		assert.Equal(t, 0, st.Samples)
	}
}

func TestStore_FinalizeWithoutSamples(t *testing.T) {
	t.Run("uncalibrated stays uncalibrated", func(t *testing.T) {
		s := NewStore(testParams(), zaptest.NewLogger(t))
		s.Begin()

		_, err := s.Finalize()
		require.ErrorIs(t, err, ErrInsufficientSamples)
		assert.Equal(t, Uncalibrated, s.Status().State)
		assert.Nil(t, s.Profile())
	})

	t.Run("previous profile remains usable", func(t *testing.T) {
		s := NewStore(testParams(), zaptest.NewLogger(t))
		prev, err := s.Restore(Values{NeutralMouthGap: 0.05, NeutralBrowGap: 0.1, NeutralEyeAspect: 0.3, Samples: 40})
		require.NoError(t, err)

		s.Begin()
		_, err = s.Finalize()
		require.ErrorIs(t, err, ErrInsufficientSamples)

		assert.Same(t, prev, s.Profile())
		assert.Equal(t, Ready, s.Status().State)
		assert.NotNil(t, s.Thresholds())
	})
}

func TestStore_Abort(t *testing.T) {
	s := NewStore(testParams(), zaptest.NewLogger(t))
	assert.False(t, s.Abort(), "abort without a running phase")

	prev, err := s.Restore(Values{NeutralMouthGap: 0.05, NeutralBrowGap: 0.1, NeutralEyeAspect: 0.3, Samples: 40})
	require.NoError(t, err)

	s.Begin()
	_, err = s.Submit(faceFrame(detector.FaceShape{MouthGap: 0.2, BrowGap: 0.3, LeftEyeAspect: 0.1, RightEyeAspect: 0.1}))
	require.NoError(t, err)
	assert.True(t, s.Abort())

	assert.Same(t, prev, s.Profile())
	assert.Equal(t, Ready, s.Status().State)
}

func TestStore_AutoFinalize(t *testing.T) {
	params := testParams()
	params.TargetSamples = 4
	s := NewStore(params, zaptest.NewLogger(t))
	s.Begin()

	var st Status
	var err error
	for i := 0; i < 4; i++ {
		st, err = s.Submit(faceFrame(detector.NeutralShape))
		require.NoError(t, err)
	}

	assert.Equal(t, Ready, st.State)
	require.NotNil(t, s.Profile())
	assert.Equal(t, 4, s.Profile().Samples())
}

func TestStore_SubmitWithoutBegin(t *testing.T) {
	s := NewStore(testParams(), zaptest.NewLogger(t))

	_, err := s.Submit(faceFrame(detector.NeutralShape))
	assert.ErrorIs(t, err, ErrNotCalibrating)

	_, err = s.Finalize()
	assert.ErrorIs(t, err, ErrNotCalibrating)
}

func TestStore_Restore(t *testing.T) {
	tests := []struct {
		name    string
		values  Values
		wantErr bool
	}{
		{name: "valid", values: Values{NeutralMouthGap: 0.05, NeutralBrowGap: 0.1, NeutralEyeAspect: 0.3, Samples: 30}},
		{name: "closed mouth", values: Values{NeutralMouthGap: 0, NeutralBrowGap: 0.1, NeutralEyeAspect: 0.3, Samples: 30}},
		{name: "no samples", values: Values{NeutralMouthGap: 0.05, NeutralBrowGap: 0.1, NeutralEyeAspect: 0.3}, wantErr: true},
		{name: "negative gap", values: Values{NeutralMouthGap: -1, NeutralBrowGap: 0.1, NeutralEyeAspect: 0.3, Samples: 1}, wantErr: true},
		{name: "zero eye aspect", values: Values{NeutralMouthGap: 0.05, NeutralBrowGap: 0.1, Samples: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(testParams(), zaptest.NewLogger(t))
			p, err := s.Restore(tt.values)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidProfile)
				assert.Nil(t, s.Profile())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.values, p.Values())
		})
	}
}

func TestThresholds_FloorNeutralGap(t *testing.T) {
	s := NewStore(testParams(), zaptest.NewLogger(t))
	_, err := s.Restore(Values{NeutralMouthGap: 0.001, NeutralBrowGap: 0.1, NeutralEyeAspect: 0.3, Samples: 1})
	require.NoError(t, err)

	th := s.Thresholds()
	require.NotNil(t, th)
	assert.InDelta(t, testParams().MinNeutralGap, th.NeutralMouthGap, 1e-12)
}

func TestStatus_JSON(t *testing.T) {
	data, err := json.Marshal(Status{State: InProgress, Samples: 4, Target: 60})
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"in_progress","samples":4,"target":60,"calibrated":false}`, string(data))
	assert.Equal(t, "in_progress(4/60)", Status{State: InProgress, Samples: 4, Target: 60}.String())
}

func TestStore_ConcurrentReaders(t *testing.T) {
	s := NewStore(testParams(), zaptest.NewLogger(t))
	_, err := s.Restore(Values{NeutralMouthGap: 0.05, NeutralBrowGap: 0.1, NeutralEyeAspect: 0.3, Samples: 1})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if p := s.Profile(); p == nil || p.Samples() < 1 {
					t.Error("reader observed an unusable profile")
					return
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		s.Begin()
		for j := 0; j < 3; j++ {
			_, _ = s.Submit(faceFrame(detector.NeutralShape))
		}
		_, _ = s.Finalize()
	}
	wg.Wait()
}
