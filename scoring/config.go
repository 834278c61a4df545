// Package scoring resolves the effective scoring configuration for a session
// and computes the two-tier clinical score: the binary protocol-compliance
// gate and, when it passes, the weighted patient performance score.
package scoring

import (
	"errors"
	"fmt"
	"math"
)

// Scope says which tier of the resolution chain a configuration belongs to.
type Scope string

const (
	ScopeGlobal    Scope = "global"
	ScopeTherapist Scope = "therapist"
	ScopePatient   Scope = "patient"
	ScopeSession   Scope = "session"
)

// DefaultConfigName is the named global fallback the resolver looks up when
// no patient- or therapist-specific configuration exists.
const DefaultConfigName = "ghostly-default"

const weightTolerance = 1e-6

// ErrInvalidConfig wraps every validation failure so loaders can branch on
// it.
var ErrInvalidConfig = errors.New("invalid scoring configuration")

// Weights are the performance sub-score weights. They must be non-negative
// and sum to 1.0 within floating tolerance.
type Weights struct {
	Achievement float64 `json:"achievement"`
	Quality     float64 `json:"quality"`
	Symmetry    float64 `json:"symmetry"`
	Fatigue     float64 `json:"fatigue"`
	Adherence   float64 `json:"adherence"`
}

// Sum returns the weight total.
func (w Weights) Sum() float64 {
	return w.Achievement + w.Quality + w.Symmetry + w.Fatigue + w.Adherence
}

// BFRBand is the blood-flow-restriction safety band, expressed as
// percentages of the measured arterial occlusion pressure.
type BFRBand struct {
	TargetPct    float64 `json:"target_pct"`
	MinPct       float64 `json:"min_pct"`
	MaxPct       float64 `json:"max_pct"`
	TolerancePct float64 `json:"tolerance_pct"`
}

// ProtocolTargets are the prescribed session structure targets.
type ProtocolTargets struct {
	Sets                   int `json:"sets"`
	RepsPerSet             int `json:"reps_per_set"`
	RepTolerance           int `json:"rep_tolerance"`
	ContractionsPerChannel int `json:"contractions_per_channel"`
	SessionsPerWeek        int `json:"sessions_per_week"`
	// MinAdherencePct is the completed/prescribed session ratio, in percent,
	// below which the frequency-adherence gate check fails.
	MinAdherencePct float64 `json:"min_adherence_pct"`
}

// EffortRange is the optimal post-minus-pre exertion delta band (Borg CR10).
type EffortRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Config is a named, versioned set of scoring weights and thresholds. A
// config pinned to a session never changes afterwards, so historical scores
// stay reproducible as defaults evolve.
type Config struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Scope       Scope  `json:"scope"`
	TherapistID string `json:"therapist_id,omitempty"`
	PatientID   string `json:"patient_id,omitempty"`
	Active      bool   `json:"active"`

	Weights Weights `json:"weights"`

	// MVCTargetPct is the fraction of the channel MVC, in percent, a
	// compliant contraction must reach.
	MVCTargetPct float64 `json:"mvc_target_pct"`
	// MVCCalibrationPct is the fraction of the calibration baseline, in
	// percent, the session peak must reach for the calibration gate check.
	MVCCalibrationPct float64 `json:"mvc_calibration_pct"`
	// DurationTargetMS is the hold-time target in milliseconds.
	DurationTargetMS float64 `json:"duration_target_ms"`

	BFR           BFRBand         `json:"bfr"`
	Protocol      ProtocolTargets `json:"protocol"`
	OptimalEffort EffortRange     `json:"optimal_effort_delta"`
	// OptimalFatigueShiftPct bounds the acceptable within-session fatigue
	// index change for the objective effort term.
	OptimalFatigueShiftPct EffortRange `json:"optimal_fatigue_shift_pct"`
}

// Default returns the global GHOSTLY+ trial configuration.
func Default() Config {
	return Config{
		ID:      "cfg-" + DefaultConfigName,
		Name:    DefaultConfigName,
		Version: 1,
		Scope:   ScopeGlobal,
		Active:  true,
		Weights: Weights{
			Achievement: 0.25,
			Quality:     0.25,
			Symmetry:    0.20,
			Fatigue:     0.20,
			Adherence:   0.10,
		},
		MVCTargetPct:      75,
		MVCCalibrationPct: 90,
		DurationTargetMS:  2000,
		BFR: BFRBand{
			TargetPct:    50,
			MinPct:       40,
			MaxPct:       60,
			TolerancePct: 10,
		},
		Protocol: ProtocolTargets{
			Sets:                   3,
			RepsPerSet:             12,
			RepTolerance:           1,
			ContractionsPerChannel: 12,
			SessionsPerWeek:        5,
			MinAdherencePct:        80,
		},
		OptimalEffort:          EffortRange{Min: 2, Max: 4},
		OptimalFatigueShiftPct: EffortRange{Min: 5, Max: 30},
	}
}

// Validate rejects configurations with out-of-range weights or thresholds.
// Invalid configurations are refused at load time, never silently clamped.
func (c Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidConfig)
	}
	for name, w := range map[string]float64{
		"achievement": c.Weights.Achievement,
		"quality":     c.Weights.Quality,
		"symmetry":    c.Weights.Symmetry,
		"fatigue":     c.Weights.Fatigue,
		"adherence":   c.Weights.Adherence,
	} {
		if w < 0 || math.IsNaN(w) {
			return fmt.Errorf("%w: %s weight %v is negative", ErrInvalidConfig, name, w)
		}
	}
	if diff := math.Abs(c.Weights.Sum() - 1.0); diff > weightTolerance {
		return fmt.Errorf("%w: weights sum to %.6f, want 1.0", ErrInvalidConfig, c.Weights.Sum())
	}
	if c.MVCTargetPct <= 0 || c.MVCTargetPct > 100 {
		return fmt.Errorf("%w: mvc target %.1f%% outside (0,100]", ErrInvalidConfig, c.MVCTargetPct)
	}
	if c.MVCCalibrationPct <= 0 || c.MVCCalibrationPct > 100 {
		return fmt.Errorf("%w: mvc calibration %.1f%% outside (0,100]", ErrInvalidConfig, c.MVCCalibrationPct)
	}
	if c.DurationTargetMS < 100 || c.DurationTargetMS > 60000 {
		return fmt.Errorf("%w: duration target %.0fms outside [100,60000]", ErrInvalidConfig, c.DurationTargetMS)
	}
	if c.BFR.MinPct < 0 || c.BFR.MaxPct > 100 || c.BFR.MinPct >= c.BFR.MaxPct {
		return fmt.Errorf("%w: bfr band [%.1f,%.1f] is not a valid percentage range", ErrInvalidConfig, c.BFR.MinPct, c.BFR.MaxPct)
	}
	if c.BFR.TargetPct < c.BFR.MinPct || c.BFR.TargetPct > c.BFR.MaxPct {
		return fmt.Errorf("%w: bfr target %.1f%% outside band [%.1f,%.1f]", ErrInvalidConfig, c.BFR.TargetPct, c.BFR.MinPct, c.BFR.MaxPct)
	}
	return nil
}
