// Package engine interprets landmark frames as drawing commands. It runs
// the gesture classifiers, debounces their signals, maps activations to
// commands through the configured bindings and arbitrates between
// commands that compete on the same frame.
package engine

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/madhubani/internal/calibration"
	"github.com/ayusman/madhubani/internal/command"
	"github.com/ayusman/madhubani/internal/config"
	"github.com/ayusman/madhubani/internal/debounce"
	"github.com/ayusman/madhubani/internal/detector"
	"github.com/ayusman/madhubani/internal/gesture"
)

// Stats counts what the engine has done.
type Stats struct {
	Frames     uint64 `json:"frames"`
	Calibrated uint64 `json:"calibration_frames"`
	Stale      uint64 `json:"stale_frames"`
	Commands   uint64 `json:"commands"`
	Suppressed uint64 `json:"suppressed"`
}

// Engine is the per-session interpreter. It is not safe for concurrent
// use; Session serializes access to it.
type Engine struct {
	tuning      config.Tuning
	classifiers gesture.Set
	debouncer   *debounce.Debouncer
	calib       *calibration.Store
	log         *zap.Logger
	now         func() time.Time

	pointer     *detector.Point3D
	strokeOpen  bool
	strokeOwner gesture.Kind

	seen      bool
	lastIndex uint64
	stats     Stats
}

// New creates an Engine. The tuning is validated; calib may be shared with
// the surrounding application for status queries.
func New(t config.Tuning, calib *calibration.Store, log *zap.Logger) (*Engine, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if calib == nil {
		return nil, fmt.Errorf("engine: nil calibration store")
	}
	if log == nil {
		log = zap.NewNop()
	}

	t = t.Clone()
	return &Engine{
		tuning:      t,
		classifiers: gesture.DefaultSet(t.Hand, log),
		debouncer:   debounce.New(t.Timings()),
		calib:       calib,
		log:         log.Named("engine"),
		now:         time.Now,
	}, nil
}

// Tuning returns a copy of the engine's configuration.
func (e *Engine) Tuning() config.Tuning { return e.tuning.Clone() }

// Calibration returns the engine's calibration store.
func (e *Engine) Calibration() *calibration.Store { return e.calib }

// Phase returns the debounce phase of a gesture.
func (e *Engine) Phase(k gesture.Kind) debounce.Phase { return e.debouncer.Phase(k) }

// Phases returns the debounce phase of every gesture.
func (e *Engine) Phases() map[gesture.Kind]debounce.Phase { return e.debouncer.Phases() }

// Pointer returns the smoothed fingertip position, if a hand is visible.
func (e *Engine) Pointer() (detector.Point3D, bool) {
	if e.pointer == nil {
		return detector.Point3D{}, false
	}
	return *e.pointer, true
}

// StrokeOpen reports whether a stroke has started and not yet ended.
func (e *Engine) StrokeOpen() bool { return e.strokeOpen }

// Stats returns the engine counters.
func (e *Engine) Stats() Stats { return e.stats }

// Result is the outcome of interpreting one frame.
type Result struct {
	Commands []command.Command
	// Calibrated is the profile frozen by this frame when it completed a
	// calibration phase, nil otherwise.
	Calibrated *calibration.Profile
}

// Process interprets one frame and returns the commands to dispatch, in
// order.
func (e *Engine) Process(frame *detector.Frame) []command.Command {
	return e.Interpret(frame).Commands
}

// Interpret interprets one frame. Frames with an index not above the
// previous one are ignored; index 0 is never considered stale. While
// calibration is in progress the frame is submitted as a sample and no
// commands are produced.
func (e *Engine) Interpret(frame *detector.Frame) Result {
	if frame == nil {
		return Result{}
	}
	if frame.Index != 0 {
		if e.seen && frame.Index <= e.lastIndex {
			e.stats.Stale++
			e.log.Debug("stale frame ignored", zap.Uint64("frame", frame.Index), zap.Uint64("last", e.lastIndex))
			return Result{}
		}
		e.seen = true
		e.lastIndex = frame.Index
	}
	e.stats.Frames++

	now := frame.Timestamp
	if now.IsZero() {
		now = e.now()
	}

	if e.calib.Status().State == calibration.InProgress {
		e.stats.Calibrated++
		st, err := e.calib.Submit(frame)
		if err != nil {
			e.log.Warn("calibration ended", zap.Error(err))
			return Result{}
		}
		if st.State != calibration.Ready {
			return Result{}
		}
		// Auto-finalized; start fresh with the new thresholds.
		e.debouncer.Reset()
		return Result{Calibrated: e.calib.Profile()}
	}

	signals := e.classifiers.Classify(frame, e.calib.Thresholds())
	lost := e.trackPointer(signals)
	emissions := e.debouncer.Step(signals, now)

	var out []command.Command
	for _, em := range emissions {
		if em.Release && e.strokeOpen && e.strokeOwner == em.Kind {
			out = append(out, e.stamp(command.Of(command.StrokeEnd), frame, em.Kind))
			e.strokeOpen = false
		}
	}
	if lost {
		out = append(out, e.stamp(command.Of(command.Idle), frame, gesture.KindDraw))
	}

	if c, ok := e.arbitrate(emissions, frame); ok {
		if c.Kind == command.StrokeStart {
			e.strokeOpen = true
			e.strokeOwner = c.Gesture
		}
		out = append(out, c)
	}

	e.stats.Commands += uint64(len(out))
	return Result{Commands: out}
}

// trackPointer updates the smoothed pointer from the hand signal and
// reports whether the pointer was lost on this frame.
func (e *Engine) trackPointer(signals []gesture.Signal) bool {
	var tip *detector.Point3D
	for _, s := range signals {
		if s.Kind == gesture.KindDraw {
			tip = s.Position
			break
		}
	}

	if tip == nil {
		lost := e.pointer != nil
		e.pointer = nil
		return lost
	}

	if e.pointer == nil {
		p := *tip
		e.pointer = &p
		return false
	}

	a := e.tuning.Smoothing
	e.pointer.X = e.pointer.X*(1-a) + tip.X*a
	e.pointer.Y = e.pointer.Y*(1-a) + tip.Y*a
	e.pointer.Z = e.pointer.Z*(1-a) + tip.Z*a
	return false
}

// candidate returns the command an emission asks for, if any. Stroke
// endings are handled separately since they bypass arbitration.
func (e *Engine) candidate(em debounce.Emission) (command.Command, bool) {
	bound, ok := e.tuning.Bindings[em.Kind]
	if !ok || bound == command.Idle {
		return command.Command{}, false
	}

	switch bound {
	case command.StrokeStart:
		if !em.Fire && !em.Hold {
			return command.Command{}, false
		}
		if e.pointer == nil {
			return command.Command{}, false
		}
		if !e.strokeOpen {
			return command.At(command.StrokeStart, *e.pointer), true
		}
		if e.strokeOwner == em.Kind && em.Hold {
			return command.At(command.StrokePoint, *e.pointer), true
		}
		return command.Command{}, false

	case command.Erase:
		if (!em.Fire && !em.Hold) || e.pointer == nil {
			return command.Command{}, false
		}
		return command.At(command.Erase, *e.pointer), true

	default:
		if !em.Fire {
			return command.Command{}, false
		}
		return command.Of(bound), true
	}
}

// arbitrate picks the single highest-priority command requested on this
// frame. Machines whose command loses still advanced; they are only
// suppressed from dispatch.
func (e *Engine) arbitrate(emissions []debounce.Emission, frame *detector.Frame) (command.Command, bool) {
	var best command.Command
	found := false
	bestRank := 0

	for _, em := range emissions {
		c, ok := e.candidate(em)
		if !ok {
			continue
		}
		c = e.stamp(c, frame, em.Kind)
		rank := e.tuning.Rank(c.Kind)
		if !found || rank < bestRank {
			if found {
				e.suppress(best)
			}
			best, bestRank, found = c, rank, true
			continue
		}
		e.suppress(c)
	}
	return best, found
}

func (e *Engine) suppress(c command.Command) {
	e.stats.Suppressed++
	e.log.Debug("command suppressed", zap.Stringer("command", c), zap.String("gesture", string(c.Gesture)))
}

func (e *Engine) stamp(c command.Command, frame *detector.Frame, k gesture.Kind) command.Command {
	c.Frame = frame.Index
	c.Gesture = k
	return c
}

// BeginCalibration starts a calibration phase. Every gesture machine is
// reset; an open stroke is closed by the returned StrokeEnd.
func (e *Engine) BeginCalibration() []command.Command {
	out := e.closeStroke()
	e.debouncer.Reset()
	e.calib.Begin()
	return out
}

// AbortCalibration ends a running phase, keeping the previous profile.
// It reports whether a phase was running.
func (e *Engine) AbortCalibration() bool {
	e.debouncer.Reset()
	return e.calib.Abort()
}

// FinalizeCalibration freezes the collected samples. On failure the
// previous profile, if any, stays in use.
func (e *Engine) FinalizeCalibration() (*calibration.Profile, error) {
	e.debouncer.Reset()
	return e.calib.Finalize()
}

// RestoreProfile replaces the frozen profile with persisted values.
func (e *Engine) RestoreProfile(v calibration.Values) (*calibration.Profile, error) {
	e.debouncer.Reset()
	return e.calib.Restore(v)
}

// Reset returns every gesture machine to Idle and closes an open stroke.
func (e *Engine) Reset() []command.Command {
	out := e.closeStroke()
	e.debouncer.Reset()
	e.pointer = nil
	return out
}

func (e *Engine) closeStroke() []command.Command {
	if !e.strokeOpen {
		return nil
	}
	e.strokeOpen = false
	c := command.Of(command.StrokeEnd)
	c.Frame = e.lastIndex
	c.Gesture = e.strokeOwner
	e.stats.Commands++
	return []command.Command{c}
}
