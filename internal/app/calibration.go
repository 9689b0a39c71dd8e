package app

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ayusman/madhubani/internal/calibration"
	"github.com/ayusman/madhubani/internal/store"
)

// ErrNoStore is returned by profile operations when the app has no store.
var ErrNoStore = errors.New("no store configured")

// BeginCalibration starts a calibration phase.
func (a *App) BeginCalibration() calibration.Status {
	return a.session.BeginCalibration()
}

// AbortCalibration abandons a running phase, keeping the previous profile.
func (a *App) AbortCalibration() bool {
	return a.session.AbortCalibration()
}

// FinalizeCalibration ends the running phase and saves the new profile.
func (a *App) FinalizeCalibration() (*calibration.Profile, error) {
	p, err := a.session.FinalizeCalibration()
	if err != nil {
		return nil, err
	}
	a.saveProfile(p.Values())
	return p, nil
}

// CalibrationStatus reports the calibration state.
func (a *App) CalibrationStatus() calibration.Status {
	return a.session.CalibrationStatus()
}

// saveProfile stores v as the active profile. Failures are logged and
// counted; the in-memory profile stays in effect either way.
func (a *App) saveProfile(v calibration.Values) {
	if a.config.Store == nil {
		return
	}
	p, err := a.config.Store.Profiles().Save(a.config.Profile, v)
	if err != nil {
		a.stats.saveErrs.Add(1)
		a.log.Error("save calibration profile", zap.String("profile", a.config.Profile), zap.Error(err))
		return
	}
	a.savedID.Store(&p.ID)
	a.log.Info("calibration profile saved", zap.String("profile", p.Name), zap.String("id", p.ID), zap.Int("samples", v.Samples))
}

// RestoreActiveProfile installs the store's active profile. It returns
// store.ErrNotFound when no profile is active.
func (a *App) RestoreActiveProfile() (*store.Profile, error) {
	if a.config.Store == nil {
		return nil, ErrNoStore
	}
	p, err := a.config.Store.Profiles().Active()
	if err != nil {
		return nil, err
	}
	if _, err := a.session.RestoreProfile(p.Values); err != nil {
		return nil, fmt.Errorf("restore profile %s: %w", p.Name, err)
	}
	a.log.Info("calibration profile restored", zap.String("profile", p.Name), zap.String("id", p.ID))
	return p, nil
}

// ActivateProfile marks a stored profile active and installs it.
func (a *App) ActivateProfile(id string) (*store.Profile, error) {
	if a.config.Store == nil {
		return nil, ErrNoStore
	}
	p, err := a.config.Store.Profiles().GetByID(id)
	if err != nil {
		return nil, err
	}
	if _, err := a.session.RestoreProfile(p.Values); err != nil {
		return nil, fmt.Errorf("restore profile %s: %w", p.Name, err)
	}
	if err := a.config.Store.Profiles().SetActive(id); err != nil {
		return nil, err
	}
	p.Active = true
	a.log.Info("calibration profile activated", zap.String("profile", p.Name), zap.String("id", p.ID))
	return p, nil
}
