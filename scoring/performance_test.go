package scoring

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	emg "github.com/ggustin93/emg-c3d-analyzer-sub015"
)

func sideAnalytics(channel string, total, good, mvc, dur int) *emg.ChannelAnalytics {
	a := &emg.ChannelAnalytics{Channel: channel}
	a.Quality.TotalContractions = total
	a.Quality.GoodContractions = good
	a.Quality.MVCCompliant = mvc
	a.Quality.DurationCompliant = dur
	if total > 0 {
		a.Quality.MVCComplianceRate = float64(mvc) / float64(total)
		a.Quality.DurationComplianceRate = float64(dur) / float64(total)
		a.Quality.OverallComplianceRate = float64(good) / float64(total)
	}
	return a
}

func TestScoreSessionGateFailure(t *testing.T) {
	obs := passingObservations()
	obs.AdverseEvents = []string{"pain reported"}

	score, err := ScoreSession(PerformanceInputs{Observations: obs}, Default())
	if err != nil {
		t.Fatalf("ScoreSession error: %v", err)
	}
	if score.State != StateGated {
		t.Fatalf("state %q, want %q", score.State, StateGated)
	}
	if score.Performance != nil {
		t.Fatal("performance computed for a gated session")
	}
	if score.Compliance.Passed {
		t.Fatal("compliance passed, want failure")
	}

	// A gated session serializes without a performance block at all.
	b, err := json.Marshal(score)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), `"performance"`) {
		t.Fatalf("gated session JSON carries a performance block: %s", b)
	}
}

func TestScoreSessionInvalidConfig(t *testing.T) {
	cfg := Default()
	cfg.Weights.Quality = 0.90

	if _, err := ScoreSession(PerformanceInputs{Observations: passingObservations()}, cfg); err == nil {
		t.Fatal("expected error for invalid configuration")
	}
}

func TestScoreSessionKnownNumbers(t *testing.T) {
	obs := passingObservations() // adherence 4/5, RPE delta 3
	inputs := PerformanceInputs{
		Left:               sideAnalytics("CH1 Left", 12, 9, 10, 11),
		Right:              sideAnalytics("CH2 Right", 10, 8, 9, 9),
		SymmetryScore:      80,
		SymmetryComputable: true,
		Observations:       obs,
	}

	score, err := ScoreSession(inputs, Default())
	if err != nil {
		t.Fatalf("ScoreSession error: %v", err)
	}
	if score.State != StateScored {
		t.Fatalf("state %q, want %q", score.State, StateScored)
	}
	p := score.Performance
	if p == nil {
		t.Fatal("performance missing for a scored session")
	}

	approx := func(name string, got, want float64) {
		t.Helper()
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
	approx("achievement", p.AchievementScore, 2200.0/24.0) // 22 of 24 prescribed
	approx("compliance", p.ComplianceScore, 1700.0/22.0)   // 17 of 22 good
	approx("symmetry", p.SymmetryScore, 80)
	approx("effort", p.EffortScore, 100) // RPE delta 3 inside [2,4], no spectral data
	approx("adherence", p.AdherenceScore, 80)

	want := 0.25*(2200.0/24.0) + 0.25*(1700.0/22.0) + 0.20*80 + 0.20*100 + 0.10*80
	approx("overall", p.OverallScore, want)

	if len(p.Sides) != 2 {
		t.Fatalf("got %d sides, want 2", len(p.Sides))
	}
	approx("left completion", p.Sides[0].CompletionRate, 1)
	approx("right completion", p.Sides[1].CompletionRate, 10.0/12.0)
	approx("left compliance", p.LeftCompliance, (1.0+10.0/12.0+11.0/12.0)/3.0)
}

func TestScoreSessionGameScoreInformational(t *testing.T) {
	obs := passingObservations()
	obs.GamePoints = 700
	obs.GameMaxPoints = 1000

	base, err := ScoreSession(PerformanceInputs{
		Left:         sideAnalytics("left", 12, 12, 12, 12),
		Observations: passingObservations(),
	}, Default())
	if err != nil {
		t.Fatalf("ScoreSession error: %v", err)
	}
	withGame, err := ScoreSession(PerformanceInputs{
		Left:         sideAnalytics("left", 12, 12, 12, 12),
		Observations: obs,
	}, Default())
	if err != nil {
		t.Fatalf("ScoreSession error: %v", err)
	}

	if math.Abs(withGame.Performance.GameScore-70) > 1e-9 {
		t.Fatalf("game score %v, want 70", withGame.Performance.GameScore)
	}
	if withGame.Performance.OverallScore != base.Performance.OverallScore {
		t.Fatalf("game points moved the overall score: %v vs %v",
			withGame.Performance.OverallScore, base.Performance.OverallScore)
	}
}

func TestScoreSessionSingleSide(t *testing.T) {
	score, err := ScoreSession(PerformanceInputs{
		Left:         sideAnalytics("left", 12, 12, 12, 12),
		Observations: passingObservations(),
	}, Default())
	if err != nil {
		t.Fatalf("ScoreSession error: %v", err)
	}
	p := score.Performance
	if p == nil {
		t.Fatal("performance missing")
	}
	// One channel means the prescription target halves with it.
	if math.Abs(p.AchievementScore-100) > 1e-9 {
		t.Fatalf("achievement %v, want 100", p.AchievementScore)
	}
	if p.SymmetryScore != 0 {
		t.Fatalf("symmetry %v for single-sided session, want 0", p.SymmetryScore)
	}
	if len(p.Sides) != 1 || p.Sides[0].Side != "left" {
		t.Fatalf("sides = %+v, want just left", p.Sides)
	}
}

func TestEffortScore(t *testing.T) {
	cfg := Default()

	mk := func(pre, post float64) PerformanceInputs {
		return PerformanceInputs{Observations: SessionObservations{PreRPE: &pre, PostRPE: &post}}
	}

	if got := effortScore(mk(3, 6), cfg); got != 100 {
		t.Errorf("delta 3: effort %v, want 100", got)
	}
	if got := effortScore(mk(3, 9), cfg); math.Abs(got-50) > 1e-9 {
		t.Errorf("delta 6: effort %v, want 50", got)
	}
	if got := effortScore(mk(5, 5), cfg); math.Abs(got-50) > 1e-9 {
		t.Errorf("delta 0: effort %v, want 50", got)
	}
	if got := effortScore(PerformanceInputs{}, cfg); got != 50 {
		t.Errorf("no measurements: effort %v, want neutral 50", got)
	}
}

func TestRangeScoreClamping(t *testing.T) {
	r := EffortRange{Min: 2, Max: 4}
	if got := rangeScore(-10, r, 25); got != 0 {
		t.Fatalf("far below range: %v, want 0", got)
	}
	if got := rangeScore(3, r, 25); got != 100 {
		t.Fatalf("inside range: %v, want 100", got)
	}
}
