// Package gesture turns one landmark frame into raw per-gesture signals.
// Classifiers are stateless: they read a frame and the frozen calibration
// thresholds and never keep anything between calls.
package gesture

import (
	"go.uber.org/zap"

	"github.com/ayusman/madhubani/internal/calibration"
	"github.com/ayusman/madhubani/internal/detector"
)

// Kind identifies a gesture.
type Kind string

const (
	// KindDraw is the hand held in the drawing pose.
	KindDraw Kind = "draw"
	// KindMouthOpen is the mouth opened past its calibrated threshold.
	KindMouthOpen Kind = "mouth_open"
	// KindEyebrowRaise is both brows lifted past their calibrated threshold.
	KindEyebrowRaise Kind = "eyebrow_raise"
	// KindWinkLeft is the left eye closed while the right stays open.
	KindWinkLeft Kind = "wink_left"
	// KindWinkRight is the right eye closed while the left stays open.
	KindWinkRight Kind = "wink_right"
	// KindBlink is both eyes closed together.
	KindBlink Kind = "blink"
)

// Kinds lists every gesture kind in a stable order.
var Kinds = []Kind{KindDraw, KindMouthOpen, KindEyebrowRaise, KindWinkLeft, KindWinkRight, KindBlink}

// Valid reports whether k is a known gesture kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Pose is the coarse configuration of the hand.
type Pose string

const (
	PoseUnknown  Pose = "unknown"
	PosePointing Pose = "pointing"
	PoseFist     Pose = "fist"
	PoseOpenPalm Pose = "open_palm"
)

// Signal is the instantaneous value of one gesture for one frame.
type Signal struct {
	Kind   Kind
	Active bool
	// Value is the measured quantity behind Active: a ratio to the neutral
	// distance for mouth and brows, an eye aspect ratio for winks, and the
	// number of extended fingers for the hand.
	Value float64
	// Pose is set by the hand classifier only.
	Pose Pose
	// Position is the index fingertip when the hand classifier saw one.
	Position *detector.Point3D
}

// Classifier maps a frame and the current thresholds to raw signals. A nil
// Thresholds means no frozen calibration is usable. Classifiers never fail:
// missing landmarks yield inactive signals.
type Classifier interface {
	Kinds() []Kind
	Classify(frame *detector.Frame, th *calibration.Thresholds) []Signal
}

// Set runs several classifiers over the same frame.
type Set []Classifier

// Classify returns the signals of every classifier, in classifier order.
func (s Set) Classify(frame *detector.Frame, th *calibration.Thresholds) []Signal {
	var out []Signal
	for _, c := range s {
		out = append(out, c.Classify(frame, th)...)
	}
	return out
}

// Kinds returns the kinds produced by the set.
func (s Set) Kinds() []Kind {
	var out []Kind
	for _, c := range s {
		out = append(out, c.Kinds()...)
	}
	return out
}

// DefaultSet returns the hand pose, mouth, eyebrow and wink classifiers.
// A nil logger disables geometry error logging.
func DefaultSet(hand HandParams, log *zap.Logger) Set {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("gesture")
	return Set{
		NewHandPoseClassifier(hand),
		MouthOpenDetector{Log: log},
		EyebrowRaiseDetector{Log: log},
		WinkDetector{Log: log},
	}
}

func inactive(kinds ...Kind) []Signal {
	out := make([]Signal, len(kinds))
	for i, k := range kinds {
		out[i] = Signal{Kind: k}
	}
	return out
}
