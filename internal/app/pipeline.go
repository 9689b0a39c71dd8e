package app

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/madhubani/internal/capture"
	"github.com/ayusman/madhubani/internal/command"
	"github.com/ayusman/madhubani/internal/detector"
)

// slot hands frames from the capture worker to the processing worker. It
// holds at most one pending frame; a newer frame replaces a pending one
// and the replaced frame is counted as dropped.
type slot struct {
	mu      sync.Mutex
	pending *capture.Frame
	dropped uint64
	ready   chan struct{}
}

func newSlot() *slot {
	return &slot{ready: make(chan struct{}, 1)}
}

// put stores f and reports the index of the frame it replaced, if any.
func (s *slot) put(f *capture.Frame) (replaced uint64, ok bool) {
	s.mu.Lock()
	if s.pending != nil {
		replaced, ok = s.pending.Index, true
		s.pending.Close()
		s.dropped++
	}
	s.pending = f
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
	return replaced, ok
}

func (s *slot) take() *capture.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.pending
	s.pending = nil
	return f
}

func (s *slot) drain() {
	s.take().Close()
}

func (s *slot) droppedCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// captureLoop reads frames at the paced rate and hands them off. Capture
// never waits for processing.
func (a *App) captureLoop(stop <-chan struct{}) {
	defer a.wg.Done()

	fps := int(a.stats.fps.Load())
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		if !a.IsEnabled() {
			continue
		}

		frame, err := a.source.Next()
		if err != nil {
			a.stats.captureErrs.Add(1)
			a.log.Debug("read frame", zap.Error(err))
			continue
		}
		a.stats.captured.Add(1)

		if !a.config.FixedRate {
			moving, _ := a.motion.Detect(frame.Mat)
			next, changed := a.pacer.Observe(moving || a.handSeen.Load(), frame.Timestamp)
			if changed {
				a.camera.SetFPS(next)
				ticker.Reset(time.Second / time.Duration(next))
				a.stats.fps.Store(int64(next))
				a.stats.active.Store(a.pacer.Active())
				a.log.Debug("capture rate changed", zap.Int("fps", next), zap.Bool("active", a.pacer.Active()))
			}
		}

		if replaced, ok := a.slot.put(frame); ok {
			a.log.Debug("frame dropped, processing behind",
				zap.Uint64("dropped", replaced), zap.Uint64("frame", frame.Index))
		}
	}
}

// processLoop runs detection and interpretation, one frame at a time.
func (a *App) processLoop(stop <-chan struct{}) {
	defer a.wg.Done()

	for {
		select {
		case <-stop:
			return
		case <-a.slot.ready:
		}

		frame := a.slot.take()
		if frame == nil {
			continue
		}
		a.processFrame(frame)
	}
}

func (a *App) processFrame(frame *capture.Frame) {
	defer frame.Close()

	d := a.Detector()
	if d == nil {
		return
	}
	landmarks, err := d.Detect(frame.Mat)
	if err != nil {
		a.stats.detectErrs.Add(1)
		a.log.Warn("detect landmarks", zap.Uint64("frame", frame.Index), zap.Error(err))
		return
	}
	landmarks.Index = frame.Index
	landmarks.Timestamp = frame.Timestamp
	a.Feed(&landmarks)
}

// Feed interprets one landmark frame and dispatches the resulting
// commands. A calibration that completes on this frame is saved.
func (a *App) Feed(frame *detector.Frame) []command.Command {
	a.handSeen.Store(frame.HasHand())

	res := a.session.Interpret(frame)
	a.stats.processed.Add(1)

	if res.Calibrated != nil {
		a.saveProfile(res.Calibrated.Values())
	}
	return res.Commands
}
