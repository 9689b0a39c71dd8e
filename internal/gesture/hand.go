package gesture

import (
	"github.com/ayusman/madhubani/internal/calibration"
	"github.com/ayusman/madhubani/internal/detector"
	"github.com/ayusman/madhubani/internal/geometry"
)

// Trigger selects what activates KindDraw.
type Trigger string

const (
	// TriggerPose draws while the hand holds DrawPose.
	TriggerPose Trigger = "pose"
	// TriggerPinch draws while the thumb tip touches the index fingertip,
	// whatever the pose.
	TriggerPinch Trigger = "pinch"
)

// HandParams tunes hand pose classification.
type HandParams struct {
	// ExtendedRatio is how much farther from the wrist a fingertip must be
	// than its PIP joint for the finger to count as extended.
	ExtendedRatio float64 `json:"extended_ratio"`
	// MinScore is the lowest detector confidence accepted for a hand.
	MinScore float64 `json:"min_score"`
	// DrawPose is the pose that activates KindDraw.
	DrawPose Pose `json:"draw_pose"`
	// DrawTrigger selects pose or pinch drawing. Empty means TriggerPose.
	DrawTrigger Trigger `json:"draw_trigger"`
	// PinchRatio is the largest thumb-to-index tip distance, in units of
	// the wrist-to-middle-MCP length, that counts as a pinch.
	PinchRatio float64 `json:"pinch_ratio"`
}

// DefaultHandParams returns the default hand parameters.
func DefaultHandParams() HandParams {
	return HandParams{
		ExtendedRatio: 1.2,
		MinScore:      0.5,
		DrawPose:      PosePointing,
		DrawTrigger:   TriggerPose,
		PinchRatio:    0.35,
	}
}

// fingers lists the (PIP, tip) landmark pairs of the four non-thumb fingers,
// index first.
var fingers = [4][2]int{
	{detector.IndexPIP, detector.IndexTip},
	{detector.MiddlePIP, detector.MiddleTip},
	{detector.RingPIP, detector.RingTip},
	{detector.PinkyPIP, detector.PinkyTip},
}

// HandPoseClassifier reports KindDraw while the hand holds the draw pose,
// or while it pinches when DrawTrigger is TriggerPinch. The signal carries the index fingertip whenever one is visible, so other
// gestures can act at the pointer even when the pose is not recognized.
type HandPoseClassifier struct {
	params HandParams
}

// NewHandPoseClassifier creates a HandPoseClassifier.
func NewHandPoseClassifier(params HandParams) *HandPoseClassifier {
	return &HandPoseClassifier{params: params}
}

// Kinds implements Classifier.
func (c *HandPoseClassifier) Kinds() []Kind { return []Kind{KindDraw} }

// Classify implements Classifier.
func (c *HandPoseClassifier) Classify(frame *detector.Frame, _ *calibration.Thresholds) []Signal {
	sig := Signal{Kind: KindDraw, Pose: PoseUnknown}
	if !frame.HasHand() {
		return []Signal{sig}
	}

	if tip, ok := frame.Hand.Point(detector.IndexTip); ok {
		sig.Position = &tip
	}

	pose, extended := ClassifyPose(frame.Hand, c.params)
	sig.Pose = pose
	sig.Value = float64(extended)
	if c.params.DrawTrigger == TriggerPinch {
		sig.Active, _ = Pinched(frame.Hand, c.params)
	} else {
		sig.Active = pose != PoseUnknown && pose == c.params.DrawPose
	}
	return []Signal{sig}
}

// Pinched reports whether the thumb tip is within PinchRatio of the index
// fingertip, measured on the normalized hand. It also returns that distance.
func Pinched(hand *detector.Hand, params HandParams) (bool, float64) {
	if hand == nil || hand.Score < params.MinScore {
		return false, 0
	}
	n := hand.Normalize()
	if n == nil {
		return false, 0
	}
	d := geometry.Distance(n.Points[detector.ThumbTip], n.Points[detector.IndexTip])
	return d < params.PinchRatio, d
}

// ClassifyPose classifies a hand from how many of its four fingers are
// extended. It also returns that count. Incomplete or low-confidence hands
// are PoseUnknown.
func ClassifyPose(hand *detector.Hand, params HandParams) (Pose, int) {
	if hand == nil || hand.Score < params.MinScore {
		return PoseUnknown, 0
	}
	n := hand.Normalize()
	if n == nil {
		return PoseUnknown, 0
	}

	wrist := n.Points[detector.Wrist]
	var ext [4]bool
	count := 0
	for i, f := range fingers {
		pip := geometry.Distance(n.Points[f[0]], wrist)
		tip := geometry.Distance(n.Points[f[1]], wrist)
		if tip > pip*params.ExtendedRatio {
			ext[i] = true
			count++
		}
	}

	switch {
	case count == 0:
		return PoseFist, count
	case count == 4:
		return PoseOpenPalm, count
	case count == 1 && ext[0]:
		return PosePointing, count
	default:
		return PoseUnknown, count
	}
}
