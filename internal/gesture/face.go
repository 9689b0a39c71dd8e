package gesture

import (
	"go.uber.org/zap"

	"github.com/ayusman/madhubani/internal/calibration"
	"github.com/ayusman/madhubani/internal/detector"
	"github.com/ayusman/madhubani/internal/geometry"
)

// MouthOpenDetector reports KindMouthOpen when the lip gap, relative to the
// calibrated neutral gap, exceeds the mouth-open ratio.
type MouthOpenDetector struct {
	// Log receives degenerate-geometry errors. May be nil.
	Log *zap.Logger
}

// Kinds implements Classifier.
func (MouthOpenDetector) Kinds() []Kind { return []Kind{KindMouthOpen} }

// Classify implements Classifier.
func (d MouthOpenDetector) Classify(frame *detector.Frame, th *calibration.Thresholds) []Signal {
	if th == nil || !frame.HasFace() || !frame.Face.Has(detector.UpperLip, detector.LowerLip, detector.Forehead, detector.Chin) {
		return inactive(KindMouthOpen)
	}

	gap, err := geometry.Normalized(frame.Face, detector.UpperLip, detector.LowerLip, detector.Forehead, detector.Chin)
	if err != nil {
		geometryFailed(d.Log, KindMouthOpen, err)
		return inactive(KindMouthOpen)
	}

	ratio := th.MouthRatio(gap)
	return []Signal{{Kind: KindMouthOpen, Active: ratio > th.MouthOpenRatio, Value: ratio}}
}

// EyebrowRaiseDetector reports KindEyebrowRaise when the mean brow-to-eye
// distance, relative to the calibrated neutral distance, exceeds the
// brow-raise ratio.
type EyebrowRaiseDetector struct {
	Log *zap.Logger
}

// Kinds implements Classifier.
func (EyebrowRaiseDetector) Kinds() []Kind { return []Kind{KindEyebrowRaise} }

// Classify implements Classifier.
func (d EyebrowRaiseDetector) Classify(frame *detector.Frame, th *calibration.Thresholds) []Signal {
	if th == nil || !frame.HasFace() || !frame.Face.Has(
		detector.LeftBrowTop, detector.LeftEyeTop,
		detector.RightBrowTop, detector.RightEyeTop,
		detector.Forehead, detector.Chin,
	) {
		return inactive(KindEyebrowRaise)
	}

	left, err := geometry.Normalized(frame.Face, detector.LeftBrowTop, detector.LeftEyeTop, detector.Forehead, detector.Chin)
	if err != nil {
		geometryFailed(d.Log, KindEyebrowRaise, err)
		return inactive(KindEyebrowRaise)
	}
	right, err := geometry.Normalized(frame.Face, detector.RightBrowTop, detector.RightEyeTop, detector.Forehead, detector.Chin)
	if err != nil {
		geometryFailed(d.Log, KindEyebrowRaise, err)
		return inactive(KindEyebrowRaise)
	}

	ratio := th.BrowRatio((left + right) / 2)
	return []Signal{{Kind: KindEyebrowRaise, Active: ratio > th.BrowRaiseRatio, Value: ratio}}
}

// WinkDetector compares each eye's aspect ratio with the calibrated closed
// threshold. One closed eye is a wink of that eye; both closed is a blink
// and never a wink.
type WinkDetector struct {
	Log *zap.Logger
}

// Kinds implements Classifier.
func (WinkDetector) Kinds() []Kind { return []Kind{KindWinkLeft, KindWinkRight, KindBlink} }

// Classify implements Classifier.
func (d WinkDetector) Classify(frame *detector.Frame, th *calibration.Thresholds) []Signal {
	if th == nil || !frame.HasFace() {
		return inactive(KindWinkLeft, KindWinkRight, KindBlink)
	}

	left, okL := d.eyeAspect(frame.Face, detector.LeftEyeTop, detector.LeftEyeBottom, detector.LeftEyeOuter, detector.LeftEyeInner)
	right, okR := d.eyeAspect(frame.Face, detector.RightEyeTop, detector.RightEyeBottom, detector.RightEyeOuter, detector.RightEyeInner)
	if !okL || !okR {
		// Asymmetry cannot be judged from one eye.
		return inactive(KindWinkLeft, KindWinkRight, KindBlink)
	}

	closedL := left < th.EyeClosedAspect
	closedR := right < th.EyeClosedAspect

	return []Signal{
		{Kind: KindWinkLeft, Active: closedL && !closedR, Value: left},
		{Kind: KindWinkRight, Active: closedR && !closedL, Value: right},
		{Kind: KindBlink, Active: closedL && closedR, Value: (left + right) / 2},
	}
}

func (d WinkDetector) eyeAspect(face *detector.Face, top, bottom, outer, inner int) (float64, bool) {
	if !face.Has(top, bottom, outer, inner) {
		return 0, false
	}
	aspect, err := geometry.Normalized(face, top, bottom, outer, inner)
	if err != nil {
		geometryFailed(d.Log, KindBlink, err)
		return 0, false
	}
	return aspect, true
}

// geometryFailed logs a landmark set whose reference distance collapsed.
// The frame still yields inactive signals.
func geometryFailed(log *zap.Logger, kind Kind, err error) {
	if log == nil {
		return
	}
	log.Error("degenerate face geometry", zap.String("gesture", string(kind)), zap.Error(err))
}
