// Package calibration records a user's neutral facial measurements and turns
// them into the thresholds the facial gesture classifiers use.
package calibration

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/madhubani/internal/detector"
)

var (
	// ErrInsufficientSamples is returned by Finalize when fewer than
	// MinSamples valid frames were collected. Calibration must be retried.
	ErrInsufficientSamples = errors.New("insufficient calibration samples")

	// ErrNotCalibrating is returned when a sample is submitted or the phase
	// is finalized while no calibration is in progress.
	ErrNotCalibrating = errors.New("calibration not in progress")

	// ErrInvalidProfile is returned when restored values cannot back a profile.
	ErrInvalidProfile = errors.New("invalid calibration profile")
)

// State is the coarse calibration state.
type State int

const (
	Uncalibrated State = iota
	InProgress
	Ready
)

var stateNames = [...]string{"uncalibrated", "in_progress", "ready"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalJSON encodes the state by name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Status is what the calibration-status query reports.
type Status struct {
	State   State `json:"state"`
	Samples int   `json:"samples"`
	Target  int   `json:"target"`
	// Calibrated is true whenever a frozen profile is available, including
	// while a recalibration is in progress.
	Calibrated bool `json:"calibrated"`
}

func (s Status) String() string {
	if s.State == InProgress {
		return fmt.Sprintf("in_progress(%d/%d)", s.Samples, s.Target)
	}
	return s.State.String()
}

// session accumulates samples for one calibration phase.
type session struct {
	mouth, brow, eye, left, right []float64
}

func (s *session) add(m Measurement) {
	s.mouth = append(s.mouth, m.MouthGap)
	s.brow = append(s.brow, m.BrowGap)
	s.eye = append(s.eye, m.EyeAspect())
	s.left = append(s.left, m.LeftEyeAspect)
	s.right = append(s.right, m.RightEyeAspect)
}

func (s *session) count() int { return len(s.mouth) }

// Store owns the calibration profile of one session. The frozen profile is
// published through an atomic pointer so readers never observe a partially
// built profile.
type Store struct {
	params Params
	log    *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	session *session

	frozen atomic.Pointer[Profile]
}

// NewStore creates an uncalibrated Store.
func NewStore(params Params, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		params: params,
		log:    log.Named("calibration"),
		now:    time.Now,
	}
}

// Params returns the parameters the store was built with.
func (s *Store) Params() Params {
	return s.params
}

// Begin starts a calibration phase, discarding any samples of a phase that
// was already running. The previously frozen profile stays in place until
// Finalize succeeds.
func (s *Store) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = &session{}
	s.log.Info("calibration started", zap.Int("min_samples", s.params.MinSamples), zap.Int("target_samples", s.params.TargetSamples))
}

// Submit accumulates one frame. Frames without the required face landmarks
// are ignored. When TargetSamples is reached the phase is finalized
// automatically. The returned Status reflects the state after the call.
func (s *Store) Submit(frame *detector.Frame) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return s.statusLocked(), ErrNotCalibrating
	}

	if frame.HasFace() {
		if m, ok := Measure(frame.Face); ok {
			s.session.add(m)
		}
	}

	if s.params.TargetSamples > 0 && s.session.count() >= s.params.TargetSamples {
		if _, err := s.finalizeLocked(); err != nil {
			return s.statusLocked(), err
		}
	}

	return s.statusLocked(), nil
}

// Finalize freezes the collected samples into a new profile. With fewer than
// MinSamples samples it fails with ErrInsufficientSamples and the phase ends
// with the previous profile, if any, still in use.
func (s *Store) Finalize() (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalizeLocked()
}

func (s *Store) finalizeLocked() (*Profile, error) {
	if s.session == nil {
		return nil, ErrNotCalibrating
	}

	sess := s.session
	s.session = nil

	need := s.params.MinSamples
	if need < 1 {
		need = 1
	}
	if sess.count() < need {
		s.log.Warn("calibration failed", zap.Int("samples", sess.count()), zap.Int("min_samples", need))
		return nil, fmt.Errorf("%d of %d samples: %w", sess.count(), need, ErrInsufficientSamples)
	}

	mouth, mouthSD := stat.MeanStdDev(sess.mouth, nil)
	brow, browSD := stat.MeanStdDev(sess.brow, nil)
	eye := stat.Mean(sess.eye, nil)
	leftSD := stat.StdDev(sess.left, nil)
	rightSD := stat.StdDev(sess.right, nil)

	values := Values{
		NeutralMouthGap:  mouth,
		NeutralBrowGap:   brow,
		NeutralEyeAspect: eye,
		Samples:          sess.count(),
	}
	if err := values.Validate(); err != nil {
		s.log.Warn("calibration produced an unusable profile", zap.Error(err))
		return nil, err
	}

	spread := Measurement{MouthGap: mouthSD, BrowGap: browSD, LeftEyeAspect: leftSD, RightEyeAspect: rightSD}
	p := newProfile(values, spread, s.now())
	s.frozen.Store(p)

	s.log.Info("calibration done",
		zap.Int("samples", values.Samples),
		zap.Float64("neutral_mouth_gap", values.NeutralMouthGap),
		zap.Float64("neutral_brow_gap", values.NeutralBrowGap),
		zap.Float64("neutral_eye_aspect", values.NeutralEyeAspect),
	)
	return p, nil
}

// Abort ends a running phase without touching the frozen profile.
// It reports whether a phase was running.
func (s *Store) Abort() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return false
	}
	s.session = nil
	s.log.Info("calibration aborted")
	return true
}

// Restore replaces the frozen profile with persisted values. A running
// phase is abandoned.
func (s *Store) Restore(v Values) (*Profile, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = nil
	p := newProfile(v, Measurement{}, s.now())
	s.frozen.Store(p)
	s.log.Info("calibration restored", zap.Int("samples", v.Samples))
	return p, nil
}

// Profile returns the frozen profile, or nil when never calibrated.
func (s *Store) Profile() *Profile {
	return s.frozen.Load()
}

// Thresholds returns the thresholds of the frozen profile, or nil when none
// is usable: never calibrated, or a calibration phase is in progress.
func (s *Store) Thresholds() *Thresholds {
	s.mu.Lock()
	calibrating := s.session != nil
	s.mu.Unlock()

	p := s.frozen.Load()
	if p == nil || calibrating {
		return nil
	}
	return p.Thresholds(s.params)
}

// Status reports the current calibration status.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Store) statusLocked() Status {
	st := Status{
		Target:     s.params.TargetSamples,
		Calibrated: s.frozen.Load() != nil,
	}
	if st.Target == 0 {
		st.Target = s.params.MinSamples
	}

	switch {
	case s.session != nil:
		st.State = InProgress
		st.Samples = s.session.count()
	case st.Calibrated:
		st.State = Ready
		st.Samples = s.frozen.Load().Samples()
	default:
		st.State = Uncalibrated
	}
	return st
}
