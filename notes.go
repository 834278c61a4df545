package emg

import (
	"fmt"
	"math"
	"strings"
)

// BuildChannelNotes turns one channel's analytics into a readable summary
// block for the clinician-facing session report.
func BuildChannelNotes(a ChannelAnalytics) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Channel %s\n", a.Channel)
	fmt.Fprintf(
		&b,
		"- Contractions: %d total, %d good (%.0f%% compliant) | MVC %.0f%%, duration %.0f%%\n",
		a.Quality.TotalContractions,
		a.Quality.GoodContractions,
		a.Quality.OverallComplianceRate*100.0,
		a.Quality.MVCComplianceRate*100.0,
		a.Quality.DurationComplianceRate*100.0,
	)
	if a.Quality.TotalContractions > 0 {
		fmt.Fprintf(
			&b,
			"- Hold times: %s avg / %s max (target %s) | time under tension %s\n",
			formatMS(a.Timing.AvgDurationMS),
			formatMS(a.Timing.MaxDurationMS),
			formatMS(a.Timing.DurationTargetMS),
			formatMS(a.Timing.TimeUnderTension),
		)
	}
	fmt.Fprintf(
		&b,
		"- Activation: RMS %.1f +/- %.1f | MAV %.1f +/- %.1f | peak %.1f (threshold %.1f)\n",
		a.Activation.RMSMean,
		a.Activation.RMSStd,
		a.Activation.MAVMean,
		a.Activation.MAVStd,
		a.Activation.PeakAmp,
		a.Quality.MVCThreshold,
	)
	if a.Fatigue.SpectralWindows > 0 {
		fmt.Fprintf(
			&b,
			"- Spectrum: MNF %.1f Hz / MDF %.1f Hz over %d windows | fatigue index shift %+.1f%%\n",
			a.Fatigue.MNFMeanHz,
			a.Fatigue.MDFMeanHz,
			a.Fatigue.SpectralWindows,
			a.Fatigue.FatigueChangePct,
		)
	}
	fmt.Fprintf(&b, "- %s\n", channelAssessment(a))

	return strings.TrimSpace(b.String())
}

func channelAssessment(a ChannelAnalytics) string {
	if a.SignalQualityScore < 0.4 {
		return fmt.Sprintf("Signal quality %.2f: treat this channel's metrics with caution (check electrode contact and gain).", a.SignalQualityScore)
	}
	if a.Quality.TotalContractions == 0 {
		return "No contractions detected above the activation threshold."
	}
	switch {
	case a.Quality.OverallComplianceRate >= 0.8:
		return "Consistent executions at or above the prescribed intensity and hold time."
	case a.Quality.MVCComplianceRate < a.Quality.DurationComplianceRate:
		return "Hold times are on target but intensity falls short; cue stronger contractions before longer ones."
	default:
		return "Intensity reaches target but holds are cut short; cue sustained effort through the full prescription."
	}
}

func formatMS(ms float64) string {
	if ms <= 0 {
		return "0ms"
	}
	if ms >= 1000 {
		return fmt.Sprintf("%.1fs", ms/1000.0)
	}
	return fmt.Sprintf("%dms", int(math.Round(ms)))
}
