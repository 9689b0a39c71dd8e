package engine

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ayusman/madhubani/internal/calibration"
	"github.com/ayusman/madhubani/internal/command"
	"github.com/ayusman/madhubani/internal/config"
	"github.com/ayusman/madhubani/internal/debounce"
	"github.com/ayusman/madhubani/internal/detector"
	"github.com/ayusman/madhubani/internal/gesture"
)

// Session owns one Engine and the Dispatcher its commands go to. Frame
// processing and calibration control are serialized under one lock, so at
// most one frame is ever in flight through the engine.
type Session struct {
	mu         sync.Mutex
	engine     *Engine
	dispatcher *command.Dispatcher
	log        *zap.Logger
}

// NewSession creates a Session.
func NewSession(e *Engine, d *command.Dispatcher, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{engine: e, dispatcher: d, log: log.Named("session")}
}

// Dispatcher returns the session's dispatcher.
func (s *Session) Dispatcher() *command.Dispatcher { return s.dispatcher }

// Process interprets frame and dispatches the resulting commands. The
// commands are also returned.
func (s *Session) Process(frame *detector.Frame) []command.Command {
	return s.Interpret(frame).Commands
}

// Interpret is Process that also reports a calibration completed by the
// frame.
func (s *Session) Interpret(frame *detector.Frame) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.engine.Interpret(frame)
	s.dispatcher.DispatchAll(res.Commands)
	return res
}

// BeginCalibration starts a calibration phase. Commands stop until it ends.
func (s *Session) BeginCalibration() calibration.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dispatcher.DispatchAll(s.engine.BeginCalibration())
	return s.engine.Calibration().Status()
}

// AbortCalibration abandons a running phase and reverts to the previous
// profile. It reports whether a phase was running.
func (s *Session) AbortCalibration() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.AbortCalibration()
}

// FinalizeCalibration ends the running phase.
func (s *Session) FinalizeCalibration() (*calibration.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.FinalizeCalibration()
}

// RestoreProfile installs persisted profile values.
func (s *Session) RestoreProfile(v calibration.Values) (*calibration.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.RestoreProfile(v)
}

// Reset returns all gesture machines to Idle, ending any open stroke.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatcher.DispatchAll(s.engine.Reset())
}

// Tuning returns a copy of the engine configuration.
func (s *Session) Tuning() config.Tuning {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Tuning()
}

// CalibrationStatus reports the calibration state. It does not wait for
// an in-flight frame.
func (s *Session) CalibrationStatus() calibration.Status {
	return s.engine.Calibration().Status()
}

// Profile returns the frozen calibration profile, nil if none.
func (s *Session) Profile() *calibration.Profile {
	return s.engine.Calibration().Profile()
}

// Snapshot is a point-in-time view of the session for status displays.
type Snapshot struct {
	Calibration calibration.Status              `json:"calibration"`
	Phases      map[gesture.Kind]debounce.Phase `json:"-"`
	PhaseNames  map[gesture.Kind]string         `json:"phases"`
	StrokeOpen  bool                            `json:"stroke_open"`
	Pointer     *detector.Point3D               `json:"pointer,omitempty"`
	Engine      Stats                           `json:"engine"`
	Dispatch    command.Stats                   `json:"dispatch"`
	Last        *command.Command                `json:"last_command,omitempty"`
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Calibration: s.engine.Calibration().Status(),
		Phases:      s.engine.Phases(),
		PhaseNames:  make(map[gesture.Kind]string),
		StrokeOpen:  s.engine.StrokeOpen(),
		Engine:      s.engine.Stats(),
		Dispatch:    s.dispatcher.Stats(),
	}
	for k, p := range snap.Phases {
		snap.PhaseNames[k] = p.String()
	}
	if p, ok := s.engine.Pointer(); ok {
		snap.Pointer = &p
	}
	if c, ok := s.dispatcher.Last(); ok {
		snap.Last = &c
	}
	return snap
}
