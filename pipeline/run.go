package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	emg "github.com/ggustin93/emg-c3d-analyzer-sub015"
	"github.com/ggustin93/emg-c3d-analyzer-sub015/scoring"
)

// Run executes the full signal-to-score pipeline for one session. The run is
// a pure function of the input and the resolved configuration; stages execute
// sequentially and per-channel problems stay contained to their channel.
// Session-level problems (bad input, invalid configuration) fail the run
// whole with no partial result.
func Run(ctx context.Context, in SessionInput, opts Options) (*SessionResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	applyDefaults(&opts)

	if err := validateInput(in); err != nil {
		return nil, err
	}

	cfg, source, err := resolveConfig(ctx, in, opts)
	if err != nil {
		return nil, err
	}

	fingerprint := Fingerprint(in, *cfg, opts)
	logger.Debug("session fingerprinted",
		zap.String("session_id", in.SessionID),
		zap.String("fingerprint", fingerprint[:12]))

	compute := func() (*SessionResult, error) {
		return analyze(in, *cfg, source, fingerprint, opts, logger)
	}

	var (
		core *SessionResult
		hit  bool
	)
	if opts.Cache != nil {
		core, hit, err = opts.Cache.GetOrCompute(fingerprint, compute)
	} else {
		core, err = compute()
	}
	if err != nil {
		return nil, err
	}
	if hit {
		logger.Info("analytics served from cache",
			zap.String("session_id", in.SessionID),
			zap.String("fingerprint", fingerprint[:12]))
	}

	// Cached cores are shared; stamp run identity on a copy.
	res := *core
	res.RunID = uuid.New().String()
	res.GeneratedAt = time.Now().UTC()

	// First successful scoring freezes the configuration for this session so
	// the score stays reproducible as defaults evolve.
	if res.Score.State == scoring.StateScored && opts.Resolver != nil && in.SessionID != "" {
		if _, err := opts.Resolver.PinToSession(ctx, in.SessionID, *cfg); err != nil {
			return nil, fmt.Errorf("pin configuration to session %s: %w", in.SessionID, err)
		}
	}

	if opts.OutDir != "" {
		bundle, err := writeArtifacts(&res, opts)
		if err != nil {
			return nil, err
		}
		res.Artifacts = bundle
	}
	return &res, nil
}

func applyDefaults(opts *Options) {
	if opts.Filter == (emg.FilterConfig{}) {
		opts.Filter = emg.DefaultFilterConfig()
	}
	if opts.Spectral == (emg.SpectralConfig{}) {
		opts.Spectral = emg.DefaultSpectralConfig()
	}
	if opts.Segment == (emg.SegmentConfig{}) {
		opts.Segment = emg.DefaultSegmentConfig()
	}
	if opts.Format == "" {
		opts.Format = "parquet"
	}
}

func validateInput(in SessionInput) error {
	if len(in.Channels) == 0 {
		return fmt.Errorf("session %q: no channels", in.SessionID)
	}
	length := -1
	for _, ch := range in.Channels {
		if strings.TrimSpace(ch.Label) == "" {
			return fmt.Errorf("session %q: channel with empty label", in.SessionID)
		}
		if ch.SampleRateHz <= 0 {
			return fmt.Errorf("session %q channel %q: %w", in.SessionID, ch.Label, emg.ErrBadSampleRate)
		}
		if len(ch.Samples) == 0 {
			return fmt.Errorf("session %q channel %q: %w", in.SessionID, ch.Label, emg.ErrEmptySignal)
		}
		if length >= 0 && len(ch.Samples) != length {
			return fmt.Errorf("session %q: mismatched channel lengths (%d vs %d)", in.SessionID, length, len(ch.Samples))
		}
		length = len(ch.Samples)
	}
	return nil
}

func resolveConfig(ctx context.Context, in SessionInput, opts Options) (*scoring.Config, string, error) {
	if opts.Resolver == nil {
		cfg := scoring.Default()
		return &cfg, "builtin-default", nil
	}
	cfg, source, err := opts.Resolver.Resolve(ctx, in.SessionID, in.PatientID)
	if err != nil {
		return nil, "", fmt.Errorf("session %q: %w", in.SessionID, err)
	}
	return cfg, source, nil
}

// analyze computes the deterministic core of the session result. RunID and
// GeneratedAt are stamped by Run afterwards so cached cores stay reusable.
func analyze(in SessionInput, cfg scoring.Config, source, fingerprint string, opts Options, logger *zap.Logger) (*SessionResult, error) {
	res := &SessionResult{
		SessionID:     in.SessionID,
		PatientID:     in.PatientID,
		Fingerprint:   fingerprint,
		ConfigID:      cfg.ID,
		ConfigVersion: cfg.Version,
		ConfigSource:  source,
		Channels:      make([]ChannelResult, len(in.Channels)),
	}

	for i, ch := range in.Channels {
		cr := analyzeChannel(ch, cfg, opts)
		if cr.Error != "" {
			logger.Warn("channel analysis failed",
				zap.String("session_id", in.SessionID),
				zap.String("channel", ch.Label),
				zap.String("error", cr.Error))
		} else {
			logger.Debug("channel analyzed",
				zap.String("channel", ch.Label),
				zap.Int("contractions", cr.Analytics.Quality.TotalContractions))
		}
		res.Channels[i] = cr
	}

	res.Symmetry = compareSides(in, res.Channels)

	obs := in.Observations
	fillObservedMVC(&obs, in, res.Channels)

	left, right := sideAnalytics(in, res.Channels)
	score, err := scoring.ScoreSession(scoring.PerformanceInputs{
		Left:               left,
		Right:              right,
		SymmetryScore:      res.Symmetry.Score,
		SymmetryComputable: res.Symmetry.Computable,
		Observations:       obs,
	}, cfg)
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", in.SessionID, err)
	}
	res.Score = score

	res.Notes = buildSessionNotes(res)
	return res, nil
}

// analyzeChannel runs conditioning, segmentation, classification and
// aggregation for one channel. Segment thresholds below 1 are treated as MVC
// fractions and resolved against the channel's calibration (or, failing
// that, its envelope peak).
func analyzeChannel(ch ChannelInput, cfg scoring.Config, opts Options) ChannelResult {
	signal := emg.ChannelSignal{
		Label:      ch.Label,
		SampleRate: ch.SampleRateHz,
		Samples:    ch.Samples,
	}

	env, err := emg.ComputeEnvelope(signal, opts.Filter)
	if err != nil {
		return ChannelResult{Analytics: emg.ChannelAnalytics{Channel: ch.Label}, Error: err.Error()}
	}

	mvc := ch.MVCValue
	if mvc <= 0 {
		for _, v := range env.Values {
			if v > mvc {
				mvc = v
			}
		}
	}

	segCfg := opts.Segment
	if segCfg.MVCReference == 0 && segCfg.Threshold < 1 {
		segCfg.MVCReference = mvc
	}
	contractions := emg.SegmentAll(env, segCfg)

	mvcThreshold := cfg.MVCTargetPct / 100.0 * mvc
	var qualities []emg.ContractionQuality
	if len(contractions) > 0 {
		qualities, err = emg.ClassifyAll(contractions, mvcThreshold, cfg.DurationTargetMS)
		if err != nil {
			return ChannelResult{Analytics: emg.ChannelAnalytics{Channel: ch.Label}, Error: err.Error()}
		}
	}

	analytics, err := emg.AggregateChannel(signal, env, contractions, qualities, emg.ChannelThresholds{
		MVCValue:             mvc,
		MVCThreshold:         mvcThreshold,
		DurationTargetMS:     cfg.DurationTargetMS,
		ExpectedContractions: cfg.Protocol.ContractionsPerChannel,
	}, opts.Spectral)
	if err != nil {
		return ChannelResult{Analytics: emg.ChannelAnalytics{Channel: ch.Label}, Error: err.Error()}
	}

	return ChannelResult{Analytics: analytics, envelope: env}
}

// compareSides pairs the first usable left and right channels and compares
// their MVC estimates. With one side missing the score is the documented
// default of 0 with Computable=false.
func compareSides(in SessionInput, channels []ChannelResult) SymmetrySummary {
	s := SymmetrySummary{Metric: "mvc_value"}

	var left, right *ChannelResult
	for i := range channels {
		if channels[i].Error != "" {
			continue
		}
		switch inferSide(in.Channels[i]) {
		case "left":
			if left == nil {
				left = &channels[i]
			}
		case "right":
			if right == nil {
				right = &channels[i]
			}
		}
	}
	if left == nil || right == nil {
		return s
	}

	s.LeftLabel = left.Analytics.Channel
	s.RightLabel = right.Analytics.Channel
	s.Score, s.Computable = emg.CompareSides(left.Analytics.Quality.MVCValue, right.Analytics.Quality.MVCValue)
	return s
}

func sideAnalytics(in SessionInput, channels []ChannelResult) (left, right *emg.ChannelAnalytics) {
	for i := range channels {
		if channels[i].Error != "" {
			continue
		}
		switch inferSide(in.Channels[i]) {
		case "left":
			if left == nil {
				left = &channels[i].Analytics
			}
		case "right":
			if right == nil {
				right = &channels[i].Analytics
			}
		}
	}
	return left, right
}

func inferSide(ch ChannelInput) string {
	switch strings.ToLower(ch.Side) {
	case "left", "right":
		return strings.ToLower(ch.Side)
	}
	label := strings.ToLower(ch.Label)
	switch {
	case strings.Contains(label, "left"):
		return "left"
	case strings.Contains(label, "right"):
		return "right"
	case strings.HasSuffix(label, "_l") || strings.HasSuffix(label, " l"):
		return "left"
	case strings.HasSuffix(label, "_r") || strings.HasSuffix(label, " r"):
		return "right"
	}
	return ""
}

// fillObservedMVC backfills calibration observations from the recording when
// the therapist did not enter them manually.
func fillObservedMVC(obs *scoring.SessionObservations, in SessionInput, channels []ChannelResult) {
	if obs.MVCPeak == 0 {
		for _, cr := range channels {
			if cr.Error != "" {
				continue
			}
			for _, c := range cr.Analytics.Contractions {
				if c.PeakAmplitude > obs.MVCPeak {
					obs.MVCPeak = c.PeakAmplitude
				}
			}
		}
	}
	if obs.MVCBaseline == 0 {
		for _, ch := range in.Channels {
			if ch.MVCValue > obs.MVCBaseline {
				obs.MVCBaseline = ch.MVCValue
			}
		}
	}
}

// MarshalCanonical serializes the result with run identity (RunID,
// GeneratedAt) and artifact paths cleared, which is the byte-stable form used
// for determinism checks and content comparison.
func (r *SessionResult) MarshalCanonical() ([]byte, error) {
	c := *r
	c.RunID = ""
	c.GeneratedAt = time.Time{}
	c.Artifacts = nil
	return json.Marshal(&c)
}
