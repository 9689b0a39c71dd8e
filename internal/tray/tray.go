// Package tray provides the system tray menu for Madhubani.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
	"go.uber.org/zap"

	"github.com/ayusman/madhubani/internal/calibration"
	"github.com/ayusman/madhubani/internal/command"
)

// Tray is the system tray menu. Callbacks run on the menu goroutine.
type Tray struct {
	onToggle      func(enabled bool)
	onRecalibrate func()
	onSettings    func()
	onQuit        func()
	enabled       bool
	log           *zap.Logger
	mu            sync.RWMutex

	menuToggle      *systray.MenuItem
	menuStatus      *systray.MenuItem
	menuLastCommand *systray.MenuItem
}

// New creates a Tray with detection shown as enabled.
func New(log *zap.Logger) *Tray {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tray{
		enabled: true,
		log:     log.Named("tray"),
	}
}

// OnToggle sets the callback for the enable/disable item.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnRecalibrate sets the callback for the recalibrate item.
func (t *Tray) OnRecalibrate(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRecalibrate = fn
}

// OnSettings sets the callback for the settings item.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback for the quit item.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the tray. It blocks until Quit is called and must run on the
// main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops a running tray.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Madhubani")
	systray.SetTooltip("Madhubani gesture drawing")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleLabel(t.enabled), "Toggle gesture detection")
	systray.AddSeparator()

	t.menuStatus = systray.AddMenuItem(statusLabel(calibration.Status{}), "Calibration state")
	t.menuStatus.Disable()
	t.menuLastCommand = systray.AddMenuItem(lastLabel(nil), "Last drawing command")
	t.menuLastCommand.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuRecalibrate := systray.AddMenuItem("Recalibrate", "Capture a new neutral face")
	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Madhubani")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuRecalibrate.ClickedCh:
				t.call(t.recalibrateFn())
			case <-menuSettings.ClickedCh:
				t.call(t.settingsFn())
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
	t.log.Debug("tray ready")
}

func (t *Tray) onExit() {
	t.log.Debug("tray exited")
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleLabel(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	t.log.Info("detection toggled from tray", zap.Bool("enabled", enabled))
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
	systray.Quit()
}

func (t *Tray) recalibrateFn() func() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.onRecalibrate
}

func (t *Tray) settingsFn() func() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.onSettings
}

func (t *Tray) call(fn func()) {
	if fn != nil {
		fn()
	}
}

// SetEnabled updates the toggle item without firing the callback.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleLabel(enabled))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// SetStatus shows the calibration state.
func (t *Tray) SetStatus(s calibration.Status) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(statusLabel(s))
	}
}

// SetLastCommand shows c as the most recent command.
func (t *Tray) SetLastCommand(c command.Command) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.menuLastCommand != nil {
		t.menuLastCommand.SetTitle(lastLabel(&c))
	}
}

// Follow updates the last-command item from sub until the channel closes.
// Stroke points are skipped.
func (t *Tray) Follow(sub <-chan command.Command) {
	for c := range sub {
		if c.Kind == command.StrokePoint {
			continue
		}
		t.SetLastCommand(c)
	}
}

func toggleLabel(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func statusLabel(s calibration.Status) string {
	switch {
	case s.State == calibration.InProgress:
		return fmt.Sprintf("Calibrating %d/%d", s.Samples, s.Target)
	case s.Calibrated:
		return "Calibrated"
	default:
		return "Not calibrated"
	}
}

func lastLabel(c *command.Command) string {
	if c == nil {
		return "Last: none"
	}
	return "Last: " + c.Kind.String()
}
