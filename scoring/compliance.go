package scoring

import "fmt"

// SessionObservations are the session-level facts recorded by the therapist
// or device alongside the signal: BFR pressure, exercise structure, exertion
// ratings, game results, adherence counters. Optional measurements use
// pointers; nil means "not recorded", which is distinct from zero.
type SessionObservations struct {
	// AppliedPressurePct is the cuff pressure as a percentage of the
	// measured arterial occlusion pressure.
	AppliedPressurePct *float64 `json:"applied_pressure_pct,omitempty"`

	SetsCompleted int `json:"sets_completed"`
	TotalReps     int `json:"total_reps"`

	// MVCBaseline is the calibration amplitude measured before the session;
	// MVCPeak is the highest contraction amplitude reached during it.
	MVCBaseline float64 `json:"mvc_baseline"`
	MVCPeak     float64 `json:"mvc_peak"`

	// PreRPE and PostRPE are Borg CR10 exertion ratings.
	PreRPE  *float64 `json:"pre_rpe,omitempty"`
	PostRPE *float64 `json:"post_rpe,omitempty"`

	GamePoints    float64 `json:"game_points"`
	GameMaxPoints float64 `json:"game_max_points"`

	CompletedSessions  int `json:"completed_sessions"`
	PrescribedSessions int `json:"prescribed_sessions"`

	AdverseEvents []string `json:"adverse_events,omitempty"`
}

// ComplianceCheck is one gate sub-check, retained for operator visibility
// whether it passed or not.
type ComplianceCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// ComplianceResult is the Tier 1 gate outcome. A failed gate is an expected,
// modeled result, not an error: the session's performance is recorded as not
// computable and the violated checks are kept.
type ComplianceResult struct {
	Passed     bool              `json:"passed"`
	Checks     []ComplianceCheck `json:"checks"`
	Violations []string          `json:"violations,omitempty"`
}

// EvaluateCompliance runs the protocol gate: pressure inside the BFR safety
// band, set/rep counts against protocol targets (reps within the configured
// tolerance), MVC calibration achievement, session-frequency adherence, and
// absence of adverse events. Every sub-check must pass.
func EvaluateCompliance(obs SessionObservations, cfg Config) ComplianceResult {
	var res ComplianceResult

	add := func(name string, passed bool, detail string) {
		res.Checks = append(res.Checks, ComplianceCheck{Name: name, Passed: passed, Detail: detail})
		if !passed {
			res.Violations = append(res.Violations, fmt.Sprintf("%s: %s", name, detail))
		}
	}

	// Pressure band, tightened by the tolerance around the target.
	lo := cfg.BFR.MinPct
	if t := cfg.BFR.TargetPct - cfg.BFR.TolerancePct; t > lo {
		lo = t
	}
	hi := cfg.BFR.MaxPct
	if t := cfg.BFR.TargetPct + cfg.BFR.TolerancePct; t < hi {
		hi = t
	}
	switch {
	case obs.AppliedPressurePct == nil:
		add("bfr_pressure", false, "applied pressure was not recorded")
	case *obs.AppliedPressurePct < lo || *obs.AppliedPressurePct > hi:
		add("bfr_pressure", false, fmt.Sprintf("applied %.1f%% AOP outside safety band [%.1f, %.1f]", *obs.AppliedPressurePct, lo, hi))
	default:
		add("bfr_pressure", true, fmt.Sprintf("applied %.1f%% AOP within [%.1f, %.1f]", *obs.AppliedPressurePct, lo, hi))
	}

	add("sets", obs.SetsCompleted == cfg.Protocol.Sets,
		fmt.Sprintf("completed %d of %d sets", obs.SetsCompleted, cfg.Protocol.Sets))

	targetReps := cfg.Protocol.Sets * cfg.Protocol.RepsPerSet
	repDiff := obs.TotalReps - targetReps
	if repDiff < 0 {
		repDiff = -repDiff
	}
	add("repetitions", repDiff <= cfg.Protocol.RepTolerance,
		fmt.Sprintf("completed %d of %d reps (tolerance %d)", obs.TotalReps, targetReps, cfg.Protocol.RepTolerance))

	required := cfg.MVCCalibrationPct / 100.0 * obs.MVCBaseline
	switch {
	case obs.MVCBaseline <= 0:
		add("mvc_calibration", false, "no MVC calibration baseline recorded")
	case obs.MVCPeak < required:
		add("mvc_calibration", false, fmt.Sprintf("peak %.1f below %.0f%% of baseline %.1f", obs.MVCPeak, cfg.MVCCalibrationPct, obs.MVCBaseline))
	default:
		add("mvc_calibration", true, fmt.Sprintf("peak %.1f reached %.0f%% of baseline %.1f", obs.MVCPeak, cfg.MVCCalibrationPct, obs.MVCBaseline))
	}

	if obs.PrescribedSessions > 0 {
		ratio := float64(obs.CompletedSessions) / float64(obs.PrescribedSessions) * 100.0
		add("frequency_adherence", ratio >= cfg.Protocol.MinAdherencePct,
			fmt.Sprintf("%d of %d prescribed sessions (%.0f%%, minimum %.0f%%)", obs.CompletedSessions, obs.PrescribedSessions, ratio, cfg.Protocol.MinAdherencePct))
	} else {
		add("frequency_adherence", true, "no prescription on record")
	}

	add("adverse_events", len(obs.AdverseEvents) == 0,
		fmt.Sprintf("%d adverse events recorded", len(obs.AdverseEvents)))

	res.Passed = true
	for _, c := range res.Checks {
		if !c.Passed {
			res.Passed = false
			break
		}
	}
	return res
}
