// Package pipeline orchestrates the signal-to-score run for one recorded
// session: conditioning, segmentation, classification, aggregation, bilateral
// comparison, the protocol gate and the performance score, plus the artifact
// bundle written for the persistence layer.
package pipeline

import (
	"time"

	"go.uber.org/zap"

	emg "github.com/ggustin93/emg-c3d-analyzer-sub015"
	"github.com/ggustin93/emg-c3d-analyzer-sub015/scoring"
)

// ChannelInput is one channel of the session bundle handed over by the
// ingestion layer: already demultiplexed samples plus the sampling rate.
type ChannelInput struct {
	Label string `json:"label"`
	// Side is "left" or "right". Empty sides are inferred from the label
	// where possible.
	Side         string    `json:"side,omitempty"`
	SampleRateHz float64   `json:"sample_rate_hz"`
	Samples      []float64 `json:"samples"`
	// MVCValue is the channel's calibration amplitude, when a calibration
	// recording exists. Zero falls back to the session's observed peak.
	MVCValue float64 `json:"mvc_value,omitempty"`
}

// SessionInput is the full input contract for one session run.
type SessionInput struct {
	SessionID string         `json:"session_id"`
	PatientID string         `json:"patient_id"`
	Channels  []ChannelInput `json:"channels"`

	Observations scoring.SessionObservations `json:"observations"`
}

// Options configures a pipeline run.
type Options struct {
	// OutDir enables the artifact bundle when non-empty.
	OutDir string
	// Format selects the sample/contraction table format: parquet|csv.
	Format    string
	Overwrite bool
	// IncludeEnvelope adds the per-sample envelope table to the bundle.
	IncludeEnvelope bool

	Filter   emg.FilterConfig
	Spectral emg.SpectralConfig
	Segment  emg.SegmentConfig

	// Resolver supplies the effective scoring configuration and pins it to
	// the session on first scoring. Nil falls back to scoring.Default().
	Resolver *scoring.Resolver
	// Cache deduplicates identical (signal, parameters) computations.
	Cache *Cache
	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

// ChannelResult is one channel's analytics, or the error that kept this
// channel out of the aggregate while the rest of the session proceeded.
type ChannelResult struct {
	Analytics emg.ChannelAnalytics `json:"analytics"`
	Error     string               `json:"error,omitempty"`

	envelope emg.Envelope
}

// SymmetrySummary reports the bilateral comparison.
type SymmetrySummary struct {
	Score      float64 `json:"score"`
	Computable bool    `json:"computable"`
	Metric     string  `json:"metric"`
	LeftLabel  string  `json:"left_label,omitempty"`
	RightLabel string  `json:"right_label,omitempty"`
}

// SessionResult is the nested session document handed to persistence. With
// identical input and configuration the document is byte-identical across
// runs apart from RunID and GeneratedAt; see MarshalCanonical.
type SessionResult struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`

	SessionID   string `json:"session_id"`
	PatientID   string `json:"patient_id"`
	Fingerprint string `json:"fingerprint"`

	ConfigID      string `json:"config_id"`
	ConfigVersion int    `json:"config_version"`
	ConfigSource  string `json:"config_source"`

	Channels []ChannelResult      `json:"channels"`
	Symmetry SymmetrySummary      `json:"symmetry"`
	Score    scoring.SessionScore `json:"score"`
	Notes    string               `json:"notes"`

	Artifacts *ArtifactBundle `json:"artifacts,omitempty"`
}

// ArtifactBundle lists the files written for one run.
type ArtifactBundle struct {
	OutputDir        string `json:"output_dir"`
	ManifestPath     string `json:"manifest_path"`
	ResultPath       string `json:"result_path"`
	ContractionsPath string `json:"contractions_path"`
	EnvelopePath     string `json:"envelope_path,omitempty"`
	NotesPath        string `json:"notes_path"`
}

// Manifest describes a run's artifact bundle for downstream consumers.
type Manifest struct {
	FormatVersion    string    `json:"format_version"`
	RunID            string    `json:"run_id"`
	GeneratedAt      time.Time `json:"generated_at"`
	SessionID        string    `json:"session_id"`
	PatientID        string    `json:"patient_id"`
	Fingerprint      string    `json:"fingerprint"`
	ChannelCount     int       `json:"channel_count"`
	ContractionCount int       `json:"contraction_count"`
	GatePassed       bool      `json:"gate_passed"`
	ResultPath       string    `json:"result_path"`
	ContractionsPath string    `json:"contractions_path"`
	EnvelopePath     string    `json:"envelope_path,omitempty"`
	NotesPath        string    `json:"notes_path"`
}

// ManifestFormatVersion identifies the artifact bundle layout.
const ManifestFormatVersion = "emg_session_bundle_v1"
