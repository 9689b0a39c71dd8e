package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Frame differencing parameters.
const (
	// BlurSize is the Gaussian kernel applied before differencing.
	BlurSize = 21
	// DiffThreshold is the per-pixel intensity change that counts as changed.
	DiffThreshold = 25
	// DefaultMotionThreshold is the share of changed pixels, in percent,
	// that counts as motion.
	DefaultMotionThreshold = 1.0
)

// MotionDetector compares consecutive frames by blurred grayscale
// differencing.
type MotionDetector struct {
	threshold   float64
	prevGray    gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// NewMotionDetector creates a MotionDetector. threshold is the percentage
// of pixels that must change; non-positive values select the default.
func NewMotionDetector(threshold float64) *MotionDetector {
	if threshold <= 0 {
		threshold = DefaultMotionThreshold
	}
	return &MotionDetector{
		threshold: threshold,
		prevGray:  gocv.NewMat(),
	}
}

// Detect reports whether frame differs from the previous frame and the
// percentage of changed pixels. The first frame only sets the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: BlurSize, Y: BlurSize}, 0, 0, gocv.BorderDefault)

	if !m.initialized || blurred.Rows() != m.prevGray.Rows() || blurred.Cols() != m.prevGray.Cols() {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0
	blurred.CopyTo(&m.prevGray)

	return changed > m.threshold, changed
}

// Reset drops the baseline frame.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clear()
}

// Close releases the baseline frame. The detector stays usable.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clear()
}

func (m *MotionDetector) clear() {
	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.initialized = false
}

// SetThreshold sets the motion threshold. Values <= 0 are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.threshold = threshold
}

// Pacer picks the capture rate from scene activity: ActiveFPS while
// anything moves or a hand is tracked, IdleFPS once the scene has been
// still for the idle timeout. Frames are processed at either rate.
type Pacer struct {
	IdleFPS   int
	ActiveFPS int
	Timeout   time.Duration

	active     bool
	lastActive time.Time
}

// DefaultIdleTimeout is how long the scene must be still before idling.
const DefaultIdleTimeout = 2 * time.Second

// NewPacer starts idle.
func NewPacer() *Pacer {
	return &Pacer{IdleFPS: IdleFPS, ActiveFPS: ActiveFPS, Timeout: DefaultIdleTimeout}
}

// Observe records whether the latest frame showed activity. It returns
// the rate to capture at and whether that rate just changed.
func (p *Pacer) Observe(activity bool, now time.Time) (fps int, changed bool) {
	switch {
	case activity:
		p.lastActive = now
		if !p.active {
			p.active = true
			changed = true
		}
	case p.active && now.Sub(p.lastActive) > p.Timeout:
		p.active = false
		changed = true
	}
	return p.FPS(), changed
}

// Active reports whether the pacer is in the active rate.
func (p *Pacer) Active() bool { return p.active }

// FPS returns the current rate.
func (p *Pacer) FPS() int {
	if p.active {
		return p.ActiveFPS
	}
	return p.IdleFPS
}
