// Package app wires camera capture, landmark detection and the gesture
// engine into the running application.
package app

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ayusman/madhubani/internal/calibration"
	"github.com/ayusman/madhubani/internal/canvas"
	"github.com/ayusman/madhubani/internal/capture"
	"github.com/ayusman/madhubani/internal/command"
	"github.com/ayusman/madhubani/internal/config"
	"github.com/ayusman/madhubani/internal/detector"
	"github.com/ayusman/madhubani/internal/engine"
	"github.com/ayusman/madhubani/internal/store"
)

// DefaultProfileName is the profile calibrations are saved under.
const DefaultProfileName = "default"

// Config holds configuration options for the application.
type Config struct {
	Store  *store.Store
	Tuning config.Tuning
	Camera capture.Options
	Canvas canvas.Options
	// Profile names the profile that calibrations are saved to.
	Profile string
	// MotionThreshold is the changed-pixel percentage that keeps the
	// capture rate up. Non-positive selects the default.
	MotionThreshold float64
	// FixedRate disables activity pacing; frames are read at Camera.FPS.
	FixedRate bool
	Log       *zap.Logger
}

// Stats counts frames through the pipeline.
type Stats struct {
	Captured     uint64 `json:"captured"`
	Processed    uint64 `json:"processed"`
	Dropped      uint64 `json:"dropped"`
	CaptureErrs  uint64 `json:"capture_errors"`
	DetectErrs   uint64 `json:"detect_errors"`
	SaveErrs     uint64 `json:"save_errors"`
	CaptureFPS   int    `json:"capture_fps"`
	SceneActive  bool   `json:"scene_active"`
	ProfileSaved string `json:"profile_saved,omitempty"`
}

// App is the main application that turns camera frames into drawing
// commands.
type App struct {
	config Config
	log    *zap.Logger

	camera   capture.Camera
	source   *capture.Source
	motion   *capture.MotionDetector
	pacer    *capture.Pacer
	detector detector.Detector
	session  *engine.Session
	canvas   *canvas.Canvas
	slot     *slot

	enabled atomic.Bool
	running bool
	mu      sync.RWMutex
	stopCh  chan struct{}
	wg      sync.WaitGroup

	handSeen atomic.Bool
	stats    counters
	savedID  atomic.Pointer[string]
}

type counters struct {
	captured    atomic.Uint64
	processed   atomic.Uint64
	captureErrs atomic.Uint64
	detectErrs  atomic.Uint64
	saveErrs    atomic.Uint64
	fps         atomic.Int64
	active      atomic.Bool
}

// New creates an App. The MediaPipe detector is used when available,
// otherwise the mock detector.
func New(cfg Config) (*App, error) {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Profile == "" {
		cfg.Profile = DefaultProfileName
	}
	if cfg.Tuning.Gestures == nil {
		cfg.Tuning = config.DefaultTuning()
	}
	if cfg.Canvas.Width == 0 {
		cfg.Canvas = canvas.DefaultOptions()
	}

	calib := calibration.NewStore(cfg.Tuning.Calibration, log)
	eng, err := engine.New(cfg.Tuning, calib, log)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	cv := canvas.New(cfg.Canvas, log)
	a := &App{
		config:  cfg,
		log:     log.Named("app"),
		camera:  capture.NewCamera(cfg.Camera, log),
		motion:  capture.NewMotionDetector(cfg.MotionThreshold),
		pacer:   capture.NewPacer(),
		canvas:  cv,
		session: engine.NewSession(eng, command.NewDispatcher(cv, log), log),
		slot:    newSlot(),
	}
	a.source = capture.NewSource(a.camera)
	a.stats.fps.Store(int64(a.pacer.FPS()))

	if mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig(), log); err == nil {
		a.detector = mp
		a.log.Info("using MediaPipe landmark detection")
	} else {
		a.log.Warn("MediaPipe not available, using mock detector", zap.Error(err))
		a.detector = detector.NewMockDetector()
	}

	return a, nil
}

// SetEnabled enables or disables frame capture. Disabling also resets the
// gesture machines so nothing fires from a half-held gesture later.
func (a *App) SetEnabled(enabled bool) {
	if a.enabled.Swap(enabled) == enabled {
		return
	}
	if !enabled {
		a.session.Reset()
	}
	a.log.Info("detection toggled", zap.Bool("enabled", enabled))
}

// IsEnabled returns whether gesture detection is currently enabled.
func (a *App) IsEnabled() bool {
	return a.enabled.Load()
}

// SetDetector sets the landmark detector implementation to use.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// SetCamera replaces the camera. It must be called before Start.
func (a *App) SetCamera(c capture.Camera) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.camera = c
	a.source = capture.NewSource(c)
}

// Detector returns the landmark detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// Session returns the gesture session.
func (a *App) Session() *engine.Session { return a.session }

// Dispatcher returns the command dispatcher.
func (a *App) Dispatcher() *command.Dispatcher { return a.session.Dispatcher() }

// Canvas returns the reference canvas that every command is applied to.
func (a *App) Canvas() *canvas.Canvas { return a.canvas }

// Store returns the persistence store, possibly nil.
func (a *App) Store() *store.Store { return a.config.Store }

// Stats returns pipeline counters.
func (a *App) Stats() Stats {
	s := Stats{
		Captured:    a.stats.captured.Load(),
		Processed:   a.stats.processed.Load(),
		Dropped:     a.slot.droppedCount(),
		CaptureErrs: a.stats.captureErrs.Load(),
		DetectErrs:  a.stats.detectErrs.Load(),
		SaveErrs:    a.stats.saveErrs.Load(),
		CaptureFPS:  int(a.stats.fps.Load()),
		SceneActive: a.stats.active.Load(),
	}
	if id := a.savedID.Load(); id != nil {
		s.ProfileSaved = *id
	}
	return s
}

// Start opens the camera and begins the capture and processing workers.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return err
	}
	if a.config.FixedRate {
		a.stats.fps.Store(int64(a.camera.FPS()))
	} else {
		a.camera.SetFPS(a.pacer.FPS())
	}

	a.stopCh = make(chan struct{})
	a.running = true
	a.wg.Add(2)
	go a.captureLoop(a.stopCh)
	go a.processLoop(a.stopCh)

	a.log.Info("pipeline started")
	return nil
}

// Stop halts the pipeline and releases the camera. The detector stays
// usable until Close.
func (a *App) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	close(a.stopCh)
	a.running = false
	a.mu.Unlock()

	a.wg.Wait()
	a.slot.drain()

	if err := a.camera.Close(); err != nil {
		a.log.Warn("close camera", zap.Error(err))
	}
	a.motion.Reset()
	a.session.Reset()
	a.log.Info("pipeline stopped", zap.Uint64("processed", a.stats.processed.Load()), zap.Uint64("dropped", a.slot.droppedCount()))
}

// Close stops the pipeline and releases every resource.
func (a *App) Close() error {
	a.Stop()
	a.motion.Close()
	a.session.Dispatcher().Close()

	var errs []error
	if d := a.Detector(); d != nil {
		errs = append(errs, d.Close())
	}
	errs = append(errs, a.canvas.Close())
	return errors.Join(errs...)
}

// Running reports whether the pipeline workers are running.
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}
