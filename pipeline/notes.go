package pipeline

import (
	"fmt"
	"strings"

	emg "github.com/ggustin93/emg-c3d-analyzer-sub015"
	"github.com/ggustin93/emg-c3d-analyzer-sub015/scoring"
)

// buildSessionNotes renders the clinician-facing session report.
func buildSessionNotes(res *SessionResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Session %s (patient %s)\n", res.SessionID, res.PatientID)
	fmt.Fprintf(&b, "Configuration: %s v%d (via %s)\n", res.ConfigID, res.ConfigVersion, res.ConfigSource)

	b.WriteString("\nProtocol Compliance\n")
	if res.Score.Compliance.Passed {
		b.WriteString("- All protocol checks passed.\n")
	} else {
		for _, v := range res.Score.Compliance.Violations {
			fmt.Fprintf(&b, "- VIOLATION %s\n", v)
		}
	}

	if res.Score.State == scoring.StateScored && res.Score.Performance != nil {
		p := res.Score.Performance
		b.WriteString("\nPerformance\n")
		fmt.Fprintf(
			&b,
			"- Overall %.0f/100 | achievement %.0f, quality %.0f, symmetry %.0f, effort %.0f, adherence %.0f\n",
			p.OverallScore,
			p.AchievementScore,
			p.ComplianceScore,
			p.SymmetryScore,
			p.EffortScore,
			p.AdherenceScore,
		)
		if p.GameScore > 0 {
			fmt.Fprintf(&b, "- Game capture %.0f/100 (informational)\n", p.GameScore)
		}
	} else {
		b.WriteString("\nPerformance\n")
		b.WriteString("- Not computable: session halted at the protocol gate.\n")
	}

	if res.Symmetry.Computable {
		fmt.Fprintf(
			&b,
			"\nSymmetry: %.0f/100 (%s: %s vs %s)\n",
			res.Symmetry.Score,
			res.Symmetry.Metric,
			res.Symmetry.LeftLabel,
			res.Symmetry.RightLabel,
		)
	} else {
		b.WriteString("\nSymmetry: not comparable (need one usable channel per side)\n")
	}

	for _, cr := range res.Channels {
		b.WriteByte('\n')
		if cr.Error != "" {
			fmt.Fprintf(&b, "Channel %s\n- Excluded from analytics: %s\n", cr.Analytics.Channel, cr.Error)
			continue
		}
		b.WriteString(emg.BuildChannelNotes(cr.Analytics))
		b.WriteByte('\n')
	}

	return strings.TrimSpace(b.String())
}
