// Package emg turns raw multi-channel electromyography recordings into
// per-channel contraction and fatigue analytics.
package emg

import (
	"errors"
	"fmt"
)

// Input validation errors surfaced before any processing starts.
var (
	ErrEmptySignal      = errors.New("signal has no samples")
	ErrBadSampleRate    = errors.New("sample rate must be positive")
	ErrMissingThreshold = errors.New("classification threshold is not set")
)

// ChannelSignal is one channel's raw recording. The sample slice is owned by
// the caller for the duration of the pipeline and is never mutated.
type ChannelSignal struct {
	Label      string    `json:"label"`
	SampleRate float64   `json:"sample_rate_hz"`
	Samples    []float64 `json:"-"`
}

// Duration returns the recording length in seconds.
func (s ChannelSignal) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / s.SampleRate
}

func (s ChannelSignal) validate() error {
	if len(s.Samples) == 0 {
		return fmt.Errorf("channel %q: %w", s.Label, ErrEmptySignal)
	}
	if s.SampleRate <= 0 {
		return fmt.Errorf("channel %q: %w", s.Label, ErrBadSampleRate)
	}
	return nil
}

// Envelope is the smoothed, rectified amplitude of a signal, aligned 1:1 with
// the source samples.
type Envelope struct {
	SampleRate float64   `json:"sample_rate_hz"`
	Values     []float64 `json:"-"`
}

// Contraction is one detected interval of sustained activation. Immutable
// once produced by the segmenter.
type Contraction struct {
	OnsetS        float64 `json:"onset_s"`
	OffsetS       float64 `json:"offset_s"`
	DurationMS    float64 `json:"duration_ms"`
	PeakAmplitude float64 `json:"peak_amplitude"`
	MeanAmplitude float64 `json:"mean_amplitude"`
}

// ContractionQuality holds the compliance flags for one contraction.
// IsGood is always MeetsMVC && MeetsDuration; no other code path sets it.
type ContractionQuality struct {
	MeetsMVC      bool `json:"meets_mvc"`
	MeetsDuration bool `json:"meets_duration"`
	IsGood        bool `json:"is_good"`
}

// ScoredContraction pairs a contraction with its classification.
type ScoredContraction struct {
	Contraction
	Quality ContractionQuality `json:"quality"`
}

// QualityMetrics groups contraction counts and compliance rates.
type QualityMetrics struct {
	TotalContractions      int     `json:"total_contractions"`
	GoodContractions       int     `json:"good_contractions"`
	MVCCompliant           int     `json:"mvc_compliant"`
	DurationCompliant      int     `json:"duration_compliant"`
	EitherCompliant        int     `json:"either_compliant"`
	MVCComplianceRate      float64 `json:"mvc_compliance_rate"`
	DurationComplianceRate float64 `json:"duration_compliance_rate"`
	OverallComplianceRate  float64 `json:"overall_compliance_rate"`
	MVCValue               float64 `json:"mvc_value"`
	MVCThreshold           float64 `json:"mvc_threshold"`
}

// TimingMetrics groups contraction duration statistics.
type TimingMetrics struct {
	AvgDurationMS    float64 `json:"avg_duration_ms"`
	MaxDurationMS    float64 `json:"max_duration_ms"`
	MinDurationMS    float64 `json:"min_duration_ms"`
	TimeUnderTension float64 `json:"total_time_under_tension_ms"`
	DurationTargetMS float64 `json:"duration_target_ms"`
}

// ActivationMetrics groups amplitude statistics over the whole recording.
type ActivationMetrics struct {
	RMSMean float64 `json:"rms_mean"`
	RMSStd  float64 `json:"rms_std"`
	MAVMean float64 `json:"mav_mean"`
	MAVStd  float64 `json:"mav_std"`
	PeakAmp float64 `json:"peak_amplitude"`
}

// FatigueMetrics groups frequency-domain statistics. FatigueIndex is the
// Dimitrov normalized spectral moment ratio FI_nsm5; it is descriptive and
// never gates scoring.
type FatigueMetrics struct {
	MNFMeanHz         float64 `json:"mean_power_frequency_mean_hz"`
	MNFStdHz          float64 `json:"mean_power_frequency_std_hz"`
	MDFMeanHz         float64 `json:"median_frequency_mean_hz"`
	MDFStdHz          float64 `json:"median_frequency_std_hz"`
	FatigueIndexMean  float64 `json:"fatigue_index_mean"`
	FatigueIndexStd   float64 `json:"fatigue_index_std"`
	FatigueChangePct  float64 `json:"fatigue_index_change_pct"`
	SpectralWindows   int     `json:"spectral_windows"`
}

// ChannelAnalytics is the full per-channel, per-session aggregate. It is
// recomputed from its inputs whenever they change, never patched in place.
type ChannelAnalytics struct {
	Channel            string              `json:"channel"`
	Quality            QualityMetrics      `json:"contraction_quality"`
	Timing             TimingMetrics       `json:"contraction_timing"`
	Activation         ActivationMetrics   `json:"muscle_activation"`
	Fatigue            FatigueMetrics      `json:"fatigue_assessment"`
	SignalQualityScore float64             `json:"signal_quality_score"`
	Contractions       []ScoredContraction `json:"contractions,omitempty"`
}
