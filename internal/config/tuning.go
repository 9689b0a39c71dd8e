// Package config holds the tunable parameters of the interpretation engine
// and loads them from JSON files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/ayusman/madhubani/internal/calibration"
	"github.com/ayusman/madhubani/internal/command"
	"github.com/ayusman/madhubani/internal/debounce"
	"github.com/ayusman/madhubani/internal/gesture"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid tuning")

// maxFileSize limits tuning files to 1MB.
const maxFileSize = 1 * 1024 * 1024

// GestureTuning is the debounce timing of one gesture kind. Durations are
// strings like "300ms".
type GestureTuning struct {
	HoldFrames     int    `json:"hold_frames"`
	CooldownFrames int    `json:"cooldown_frames"`
	Cooldown       string `json:"cooldown,omitempty"`
	Continuous     bool   `json:"continuous"`
	Momentary      bool   `json:"momentary"`
	RearmOnRelease bool   `json:"rearm_on_release"`
	Repeat         int    `json:"repeat,omitempty"`
	RepeatWindow   string `json:"repeat_window,omitempty"`
}

// Timing converts g to a debounce.Timing. Unparseable durations are zero;
// Validate reports them.
func (g GestureTuning) Timing() debounce.Timing {
	return debounce.Timing{
		HoldFrames:     g.HoldFrames,
		CooldownFrames: g.CooldownFrames,
		Cooldown:       parseDuration(g.Cooldown),
		Continuous:     g.Continuous,
		Momentary:      g.Momentary,
		RearmOnRelease: g.RearmOnRelease,
		Repeat:         g.Repeat,
		RepeatWindow:   parseDuration(g.RepeatWindow),
	}
}

func (g GestureTuning) validate(kind gesture.Kind) error {
	if g.HoldFrames < 1 {
		return fmt.Errorf("%s: hold_frames must be at least 1, got %d: %w", kind, g.HoldFrames, ErrInvalid)
	}
	if g.CooldownFrames < 0 {
		return fmt.Errorf("%s: cooldown_frames must be non-negative, got %d: %w", kind, g.CooldownFrames, ErrInvalid)
	}
	if g.Repeat < 0 {
		return fmt.Errorf("%s: repeat must be non-negative, got %d: %w", kind, g.Repeat, ErrInvalid)
	}
	for name, s := range map[string]string{"cooldown": g.Cooldown, "repeat_window": g.RepeatWindow} {
		if s == "" {
			continue
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("%s: invalid %s %q: %w", kind, name, s, ErrInvalid)
		}
		if d < 0 {
			return fmt.Errorf("%s: %s must be non-negative: %w", kind, name, ErrInvalid)
		}
	}
	if g.Repeat >= 2 && g.RepeatWindow == "" {
		return fmt.Errorf("%s: repeat needs a repeat_window: %w", kind, ErrInvalid)
	}
	return nil
}

func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// Tuning is the complete engine configuration.
type Tuning struct {
	// Gestures holds the debounce timing of every gesture kind.
	Gestures map[gesture.Kind]GestureTuning `json:"gestures"`
	// Bindings maps gestures to commands. A gesture bound to stroke_start
	// opens a stroke on activation, extends it on held frames when
	// continuous, and closes it on release. Unbound gestures emit nothing.
	Bindings map[gesture.Kind]command.Kind `json:"bindings"`
	// Priority orders commands for per-frame arbitration, highest first.
	// Commands not listed rank below every listed one.
	Priority []command.Kind `json:"priority"`

	Calibration calibration.Params `json:"calibration"`
	Hand        gesture.HandParams `json:"hand"`

	// Smoothing is the weight of the newest fingertip position in the
	// pointer's moving average. 1 disables smoothing.
	Smoothing float64 `json:"smoothing"`
}

// DefaultTuning returns the recommended configuration for a 30fps camera.
func DefaultTuning() Tuning {
	return Tuning{
		Gestures: map[gesture.Kind]GestureTuning{
			gesture.KindDraw:         {HoldFrames: 3, Continuous: true},
			gesture.KindMouthOpen:    {HoldFrames: 3, Cooldown: "300ms", Continuous: true, RearmOnRelease: true},
			gesture.KindEyebrowRaise: {HoldFrames: 3, Cooldown: "1s", RearmOnRelease: true},
			gesture.KindWinkLeft:     {HoldFrames: 2, Cooldown: "400ms", Momentary: true, RearmOnRelease: true},
			gesture.KindWinkRight:    {HoldFrames: 2, Cooldown: "400ms", Momentary: true, RearmOnRelease: true},
			gesture.KindBlink: {
				HoldFrames: 2, Momentary: true, RearmOnRelease: true,
				Repeat: 2, RepeatWindow: "500ms", // double blink
			},
		},
		Bindings: map[gesture.Kind]command.Kind{
			gesture.KindDraw:         command.StrokeStart,
			gesture.KindMouthOpen:    command.Erase,
			gesture.KindEyebrowRaise: command.CycleColor,
			gesture.KindWinkLeft:     command.Undo,
			gesture.KindWinkRight:    command.Redo,
			gesture.KindBlink:        command.Clear,
		},
		Priority: []command.Kind{
			command.Undo,
			command.Redo,
			command.Clear,
			command.CycleColor,
			command.Erase,
			command.StrokeStart,
			command.StrokePoint,
		},
		Calibration: calibration.DefaultParams(),
		Hand:        gesture.DefaultHandParams(),
		Smoothing:   0.2,
	}
}

// ResponsiveTuning trades noise rejection for latency.
func ResponsiveTuning() Tuning {
	t := DefaultTuning()
	for k, g := range t.Gestures {
		if g.HoldFrames > 2 {
			g.HoldFrames = 2
		}
		t.Gestures[k] = g
	}
	t.Smoothing = 0.5
	return t
}

// StrictTuning demands longer holds, for noisy lighting or jittery detection.
func StrictTuning() Tuning {
	t := DefaultTuning()
	for k, g := range t.Gestures {
		g.HoldFrames += 2
		t.Gestures[k] = g
	}
	t.Calibration.MouthOpenMultiplier = 1.8
	t.Calibration.EyebrowRaiseMultiplier = 1.35
	t.Calibration.EyeClosedMultiplier = 0.5
	return t
}

// Preset returns the named preset: "default", "responsive" or "strict".
func Preset(name string) (Tuning, error) {
	switch name {
	case "", "default":
		return DefaultTuning(), nil
	case "responsive":
		return ResponsiveTuning(), nil
	case "strict":
		return StrictTuning(), nil
	default:
		return Tuning{}, fmt.Errorf("unknown preset %q: %w", name, ErrInvalid)
	}
}

// Timings returns the debounce timing of every configured gesture.
func (t Tuning) Timings() map[gesture.Kind]debounce.Timing {
	out := make(map[gesture.Kind]debounce.Timing, len(t.Gestures))
	for k, g := range t.Gestures {
		out[k] = g.Timing()
	}
	return out
}

// Rank returns the arbitration rank of c; lower wins.
func (t Tuning) Rank(c command.Kind) int {
	for i, p := range t.Priority {
		if p == c {
			return i
		}
	}
	return len(t.Priority)
}

// Validate checks that the configuration values are usable.
func (t Tuning) Validate() error {
	for k, g := range t.Gestures {
		if !k.Valid() {
			return fmt.Errorf("unknown gesture %q: %w", k, ErrInvalid)
		}
		if err := g.validate(k); err != nil {
			return err
		}
	}

	for k, c := range t.Bindings {
		if !k.Valid() {
			return fmt.Errorf("binding for unknown gesture %q: %w", k, ErrInvalid)
		}
		if _, ok := t.Gestures[k]; !ok && c != command.Idle {
			return fmt.Errorf("gesture %s is bound but has no timing: %w", k, ErrInvalid)
		}
		switch c {
		case command.StrokePoint, command.StrokeEnd:
			return fmt.Errorf("gesture %s: bind stroke_start to draw, not %s: %w", k, c, ErrInvalid)
		}
	}

	seen := make(map[command.Kind]bool, len(t.Priority))
	for _, c := range t.Priority {
		if seen[c] {
			return fmt.Errorf("duplicate priority entry %s: %w", c, ErrInvalid)
		}
		seen[c] = true
	}

	p := t.Calibration
	if p.MinSamples < 1 {
		return fmt.Errorf("calibration.min_samples must be at least 1, got %d: %w", p.MinSamples, ErrInvalid)
	}
	if p.TargetSamples != 0 && p.TargetSamples < p.MinSamples {
		return fmt.Errorf("calibration.target_samples %d below min_samples %d: %w", p.TargetSamples, p.MinSamples, ErrInvalid)
	}
	if p.MouthOpenMultiplier <= 1 || p.EyebrowRaiseMultiplier <= 1 {
		return fmt.Errorf("calibration open/raise multipliers must exceed 1: %w", ErrInvalid)
	}
	if p.EyeClosedMultiplier <= 0 || p.EyeClosedMultiplier >= 1 {
		return fmt.Errorf("calibration.eye_closed_multiplier must be in (0, 1), got %f: %w", p.EyeClosedMultiplier, ErrInvalid)
	}
	if p.MinNeutralGap < 0 {
		return fmt.Errorf("calibration.min_neutral_gap must be non-negative: %w", ErrInvalid)
	}

	if t.Hand.ExtendedRatio <= 1 {
		return fmt.Errorf("hand.extended_ratio must exceed 1, got %f: %w", t.Hand.ExtendedRatio, ErrInvalid)
	}
	if t.Hand.MinScore < 0 || t.Hand.MinScore > 1 {
		return fmt.Errorf("hand.min_score must be between 0 and 1, got %f: %w", t.Hand.MinScore, ErrInvalid)
	}
	switch t.Hand.DrawPose {
	case gesture.PosePointing, gesture.PoseFist, gesture.PoseOpenPalm:
	default:
		return fmt.Errorf("hand.draw_pose %q: %w", t.Hand.DrawPose, ErrInvalid)
	}
	switch t.Hand.DrawTrigger {
	case gesture.TriggerPose, gesture.TriggerPinch:
	default:
		return fmt.Errorf("hand.draw_trigger %q: %w", t.Hand.DrawTrigger, ErrInvalid)
	}
	if math.IsNaN(t.Hand.PinchRatio) || t.Hand.PinchRatio <= 0 {
		return fmt.Errorf("hand.pinch_ratio must be positive, got %f: %w", t.Hand.PinchRatio, ErrInvalid)
	}

	if math.IsNaN(t.Smoothing) || t.Smoothing <= 0 || t.Smoothing > 1 {
		return fmt.Errorf("smoothing must be in (0, 1], got %f: %w", t.Smoothing, ErrInvalid)
	}
	return nil
}

// tuningFile mirrors Tuning with gesture entries kept raw so each can be
// merged over its default.
type tuningFile struct {
	Gestures    map[gesture.Kind]json.RawMessage `json:"gestures"`
	Bindings    map[gesture.Kind]command.Kind    `json:"bindings"`
	Priority    []command.Kind                   `json:"priority"`
	Calibration json.RawMessage                  `json:"calibration"`
	Hand        json.RawMessage                  `json:"hand"`
	Smoothing   *float64                         `json:"smoothing"`
}

// Merge decodes data over t. Fields and gesture entries omitted from data
// keep their current values.
func (t *Tuning) Merge(data []byte) error {
	var f tuningFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse tuning JSON: %w", err)
	}

	if t.Gestures == nil {
		t.Gestures = make(map[gesture.Kind]GestureTuning)
	}
	for k, raw := range f.Gestures {
		g := t.Gestures[k]
		if err := json.Unmarshal(raw, &g); err != nil {
			return fmt.Errorf("parse gesture %s: %w", k, err)
		}
		t.Gestures[k] = g
	}

	if t.Bindings == nil {
		t.Bindings = make(map[gesture.Kind]command.Kind)
	}
	for k, c := range f.Bindings {
		t.Bindings[k] = c
	}

	if f.Priority != nil {
		t.Priority = f.Priority
	}
	if len(f.Calibration) > 0 {
		if err := json.Unmarshal(f.Calibration, &t.Calibration); err != nil {
			return fmt.Errorf("parse calibration: %w", err)
		}
	}
	if len(f.Hand) > 0 {
		if err := json.Unmarshal(f.Hand, &t.Hand); err != nil {
			return fmt.Errorf("parse hand: %w", err)
		}
	}
	if f.Smoothing != nil {
		t.Smoothing = *f.Smoothing
	}
	return nil
}

// MergeOverrides layers the partial tuning document "over" on top of base
// and returns the combined document. Objects merge key by key at every
// depth; any other value in over, lists included, replaces the one in base.
// An empty base is treated as {}.
func MergeOverrides(base, over []byte) ([]byte, error) {
	dst := map[string]any{}
	if len(base) > 0 {
		if err := json.Unmarshal(base, &dst); err != nil {
			return nil, fmt.Errorf("parse stored tuning: %w", err)
		}
	}
	var src map[string]any
	if err := json.Unmarshal(over, &src); err != nil {
		return nil, fmt.Errorf("parse tuning JSON: %w", err)
	}
	mergeObjects(dst, src)
	return json.Marshal(dst)
}

func mergeObjects(dst, src map[string]any) {
	for k, v := range src {
		sub, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		cur, ok := dst[k].(map[string]any)
		if !ok {
			cur = map[string]any{}
			dst[k] = cur
		}
		mergeObjects(cur, sub)
	}
}

// Clone returns a deep copy of t.
func (t Tuning) Clone() Tuning {
	out := t
	out.Gestures = make(map[gesture.Kind]GestureTuning, len(t.Gestures))
	for k, g := range t.Gestures {
		out.Gestures[k] = g
	}
	out.Bindings = make(map[gesture.Kind]command.Kind, len(t.Bindings))
	for k, c := range t.Bindings {
		out.Bindings[k] = c
	}
	out.Priority = append([]command.Kind(nil), t.Priority...)
	return out
}

// LoadTuning loads a tuning file over DefaultTuning. The file must have a
// .json extension and be under 1MB. The result is validated.
func LoadTuning(path string) (Tuning, error) {
	return LoadTuningOver(DefaultTuning(), path)
}

// LoadTuningOver loads a tuning file over base.
func LoadTuningOver(base Tuning, path string) (Tuning, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return Tuning{}, fmt.Errorf("tuning file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return Tuning{}, fmt.Errorf("stat tuning file: %w", err)
	}
	if info.Size() > maxFileSize {
		return Tuning{}, fmt.Errorf("tuning file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Tuning{}, fmt.Errorf("read tuning file: %w", err)
	}

	t := base.Clone()
	if err := t.Merge(data); err != nil {
		return Tuning{}, err
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return t, nil
}
