package calibration

import (
	"fmt"
	"math"
	"time"
)

// Values are the scalar fields of a frozen profile, exposed as plain numbers
// so the surrounding application can persist and restore them.
type Values struct {
	NeutralMouthGap  float64 `json:"neutral_mouth_gap"`
	NeutralBrowGap   float64 `json:"neutral_brow_gap"`
	NeutralEyeAspect float64 `json:"neutral_eye_aspect"`
	Samples          int     `json:"samples"`
}

// Validate reports whether v can back a frozen profile.
func (v Values) Validate() error {
	for name, f := range map[string]float64{
		"neutral_mouth_gap":  v.NeutralMouthGap,
		"neutral_brow_gap":   v.NeutralBrowGap,
		"neutral_eye_aspect": v.NeutralEyeAspect,
	} {
		if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			return fmt.Errorf("%s = %v: %w", name, f, ErrInvalidProfile)
		}
	}
	if v.NeutralBrowGap == 0 || v.NeutralEyeAspect == 0 {
		return fmt.Errorf("zero neutral distance: %w", ErrInvalidProfile)
	}
	if v.Samples < 1 {
		return fmt.Errorf("samples = %d: %w", v.Samples, ErrInvalidProfile)
	}
	return nil
}

// Profile is a frozen calibration. It is never mutated after creation;
// recalibrating builds and publishes a new Profile.
type Profile struct {
	values    Values
	spread    Measurement
	createdAt time.Time
}

func newProfile(v Values, spread Measurement, at time.Time) *Profile {
	return &Profile{values: v, spread: spread, createdAt: at}
}

// Values returns the persistable scalar fields.
func (p *Profile) Values() Values { return p.values }

// NeutralMouthGap is the resting lip gap as a fraction of face height.
func (p *Profile) NeutralMouthGap() float64 { return p.values.NeutralMouthGap }

// NeutralBrowGap is the resting brow-to-eye distance as a fraction of face height.
func (p *Profile) NeutralBrowGap() float64 { return p.values.NeutralBrowGap }

// NeutralEyeAspect is the resting open-eye aspect ratio.
func (p *Profile) NeutralEyeAspect() float64 { return p.values.NeutralEyeAspect }

// Samples is the number of frames the profile was built from.
func (p *Profile) Samples() int { return p.values.Samples }

// Spread holds the standard deviation of each measurement during calibration.
// Restored profiles have a zero spread.
func (p *Profile) Spread() Measurement { return p.spread }

// CreatedAt is when the profile was frozen or restored.
func (p *Profile) CreatedAt() time.Time { return p.createdAt }

// Thresholds derives the classification thresholds for this profile.
func (p *Profile) Thresholds(params Params) *Thresholds {
	mouth := math.Max(p.values.NeutralMouthGap, params.MinNeutralGap)
	brow := math.Max(p.values.NeutralBrowGap, params.MinNeutralGap)
	return &Thresholds{
		NeutralMouthGap:  mouth,
		NeutralBrowGap:   brow,
		NeutralEyeAspect: p.values.NeutralEyeAspect,
		MouthOpenRatio:   params.MouthOpenMultiplier,
		BrowRaiseRatio:   params.EyebrowRaiseMultiplier,
		EyeClosedAspect:  p.values.NeutralEyeAspect * params.EyeClosedMultiplier,
	}
}

// Thresholds are the calibrated limits the facial classifiers compare against.
type Thresholds struct {
	NeutralMouthGap  float64
	NeutralBrowGap   float64
	NeutralEyeAspect float64

	// MouthOpenRatio is the multiple of the neutral gap above which the mouth is open.
	MouthOpenRatio float64
	// BrowRaiseRatio is the multiple of the neutral brow gap above which brows are raised.
	BrowRaiseRatio float64
	// EyeClosedAspect is the absolute aspect ratio below which an eye counts as closed.
	EyeClosedAspect float64
}

// MouthRatio returns gap relative to the neutral mouth gap.
func (t *Thresholds) MouthRatio(gap float64) float64 {
	return gap / t.NeutralMouthGap
}

// BrowRatio returns gap relative to the neutral brow gap.
func (t *Thresholds) BrowRatio(gap float64) float64 {
	return gap / t.NeutralBrowGap
}

// Params tunes the calibration phase and the thresholds derived from it.
type Params struct {
	// MinSamples is the number of valid frames Finalize requires.
	MinSamples int `json:"min_samples"`
	// TargetSamples ends the phase automatically once reached; 0 disables it.
	TargetSamples int `json:"target_samples"`

	MouthOpenMultiplier    float64 `json:"mouth_open_multiplier"`
	EyebrowRaiseMultiplier float64 `json:"eyebrow_raise_multiplier"`
	EyeClosedMultiplier    float64 `json:"eye_closed_multiplier"`

	// MinNeutralGap floors the neutral gaps so a tightly closed mouth does
	// not turn every small movement into a huge ratio.
	MinNeutralGap float64 `json:"min_neutral_gap"`
}

// DefaultParams returns the default calibration parameters.
func DefaultParams() Params {
	return Params{
		MinSamples:             30,
		TargetSamples:          60, // ~2 seconds at 30fps
		MouthOpenMultiplier:    1.6,
		EyebrowRaiseMultiplier: 1.25,
		EyeClosedMultiplier:    0.6,
		MinNeutralGap:          0.01,
	}
}
