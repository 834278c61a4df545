package scoring

import (
	"fmt"
	"math"

	emg "github.com/ggustin93/emg-c3d-analyzer-sub015"
)

// SidePerformance is one side's execution rates, each in [0,1].
type SidePerformance struct {
	Side           string  `json:"side"`
	CompletionRate float64 `json:"completion_rate"`
	IntensityRate  float64 `json:"intensity_rate"`
	DurationRate   float64 `json:"duration_rate"`
}

// PerformanceScore is the Tier 2 result. It exists only for sessions whose
// protocol gate passed; a gate failure is recorded as "no performance score",
// never as zero. Sub-scores are bounded [0,100]; rates are [0,1].
type PerformanceScore struct {
	OverallScore     float64 `json:"overall_score"`
	AchievementScore float64 `json:"achievement_score"`
	ComplianceScore  float64 `json:"compliance_score"`
	SymmetryScore    float64 `json:"symmetry_score"`
	EffortScore      float64 `json:"effort_score"`
	AdherenceScore   float64 `json:"adherence_score"`
	// GameScore reports gamified-exercise point capture. It is informational
	// and carries no weight in the overall score.
	GameScore float64 `json:"game_score"`

	LeftCompliance  float64           `json:"left_compliance"`
	RightCompliance float64           `json:"right_compliance"`
	Sides           []SidePerformance `json:"sides,omitempty"`

	Weights Weights `json:"weights"`
}

// PerformanceInputs are the channel aggregates and session context Tier 2
// scores from. Missing sides are nil.
type PerformanceInputs struct {
	Left  *emg.ChannelAnalytics
	Right *emg.ChannelAnalytics

	SymmetryScore      float64
	SymmetryComputable bool

	Observations SessionObservations
}

// SessionScore is the scoring engine's session artifact. State is "gated"
// until the protocol gate passes and "scored" afterwards; Performance is set
// only in the scored state.
type SessionScore struct {
	State       string            `json:"state"`
	Compliance  ComplianceResult  `json:"protocol_compliance"`
	Performance *PerformanceScore `json:"performance,omitempty"`
}

// Session states.
const (
	StateGated  = "gated"
	StateScored = "scored"
)

// ScoreSession evaluates the Tier 1 gate and, if and only if it passes, the
// Tier 2 performance score. The configuration is validated first; an invalid
// configuration is an error, not a gate failure.
func ScoreSession(inputs PerformanceInputs, cfg Config) (SessionScore, error) {
	if err := cfg.Validate(); err != nil {
		return SessionScore{}, fmt.Errorf("score session: %w", err)
	}

	compliance := EvaluateCompliance(inputs.Observations, cfg)
	score := SessionScore{State: StateGated, Compliance: compliance}
	if !compliance.Passed {
		return score, nil
	}

	score.State = StateScored
	score.Performance = computePerformance(inputs, cfg)
	return score, nil
}

func computePerformance(inputs PerformanceInputs, cfg Config) *PerformanceScore {
	p := &PerformanceScore{Weights: cfg.Weights}

	var sides []SidePerformance
	totalContr, goodContr := 0, 0
	for _, sc := range []struct {
		name string
		a    *emg.ChannelAnalytics
	}{{"left", inputs.Left}, {"right", inputs.Right}} {
		if sc.a == nil {
			continue
		}
		side := sideRates(sc.name, *sc.a, cfg)
		sides = append(sides, side)
		c := (side.CompletionRate + side.IntensityRate + side.DurationRate) / 3.0
		switch sc.name {
		case "left":
			p.LeftCompliance = c
		case "right":
			p.RightCompliance = c
		}
		totalContr += sc.a.Quality.TotalContractions
		goodContr += sc.a.Quality.GoodContractions
	}
	p.Sides = sides

	// Achievement: contraction count against prescription, capped at 100.
	channels := len(sides)
	target := cfg.Protocol.ContractionsPerChannel * channels
	if target > 0 {
		p.AchievementScore = clampScore(float64(totalContr) / float64(target) * 100.0)
	} else {
		p.AchievementScore = 100
	}

	// Compliance: percentage of contractions flagged good across both sides.
	if totalContr > 0 {
		p.ComplianceScore = clampScore(float64(goodContr) / float64(totalContr) * 100.0)
	}

	// Symmetry: a single-sided session is not penalized through the overall
	// weighting beyond its documented zero.
	if inputs.SymmetryComputable {
		p.SymmetryScore = clampScore(inputs.SymmetryScore)
	}

	p.EffortScore = effortScore(inputs, cfg)

	// Adherence: completed/prescribed session ratio, capped.
	if inputs.Observations.PrescribedSessions > 0 {
		ratio := float64(inputs.Observations.CompletedSessions) / float64(inputs.Observations.PrescribedSessions)
		p.AdherenceScore = clampScore(ratio * 100.0)
	} else {
		p.AdherenceScore = 100
	}

	if inputs.Observations.GameMaxPoints > 0 {
		p.GameScore = clampScore(inputs.Observations.GamePoints / inputs.Observations.GameMaxPoints * 100.0)
	}

	w := cfg.Weights
	p.OverallScore = clampScore(
		w.Achievement*p.AchievementScore +
			w.Quality*p.ComplianceScore +
			w.Symmetry*p.SymmetryScore +
			w.Fatigue*p.EffortScore +
			w.Adherence*p.AdherenceScore)

	return p
}

func sideRates(name string, a emg.ChannelAnalytics, cfg Config) SidePerformance {
	s := SidePerformance{Side: name}
	if cfg.Protocol.ContractionsPerChannel > 0 {
		s.CompletionRate = math.Min(1, float64(a.Quality.TotalContractions)/float64(cfg.Protocol.ContractionsPerChannel))
	} else if a.Quality.TotalContractions > 0 {
		s.CompletionRate = 1
	}
	s.IntensityRate = a.Quality.MVCComplianceRate
	s.DurationRate = a.Quality.DurationComplianceRate
	return s
}

// effortScore blends the subjective exertion delta against its optimal range
// with the objective fatigue-index trend, each bounded independently. With
// neither measurement available the score is a documented neutral 50.
func effortScore(inputs PerformanceInputs, cfg Config) float64 {
	var parts []float64

	if inputs.Observations.PreRPE != nil && inputs.Observations.PostRPE != nil {
		delta := *inputs.Observations.PostRPE - *inputs.Observations.PreRPE
		parts = append(parts, rangeScore(delta, cfg.OptimalEffort, 25))
	}

	shift, ok := fatigueShift(inputs)
	if ok {
		parts = append(parts, rangeScore(shift, cfg.OptimalFatigueShiftPct, 2))
	}

	if len(parts) == 0 {
		return 50
	}
	sum := 0.0
	for _, p := range parts {
		sum += p
	}
	return clampScore(sum / float64(len(parts)))
}

// fatigueShift averages the within-session fatigue index change across the
// sides that have spectral data.
func fatigueShift(inputs PerformanceInputs) (float64, bool) {
	sum, n := 0.0, 0
	for _, a := range []*emg.ChannelAnalytics{inputs.Left, inputs.Right} {
		if a == nil || a.Fatigue.SpectralWindows < 2 {
			continue
		}
		sum += a.Fatigue.FatigueChangePct
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// rangeScore maps a value to 100 inside [r.Min, r.Max] with a linear falloff
// of penaltyPerUnit per unit of distance outside it.
func rangeScore(v float64, r EffortRange, penaltyPerUnit float64) float64 {
	switch {
	case v < r.Min:
		return clampScore(100 - (r.Min-v)*penaltyPerUnit)
	case v > r.Max:
		return clampScore(100 - (v-r.Max)*penaltyPerUnit)
	default:
		return 100
	}
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
