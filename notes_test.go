package emg

import (
	"strings"
	"testing"
)

func TestBuildChannelNotes(t *testing.T) {
	a := ChannelAnalytics{
		Channel: "EMG Left",
		Quality: QualityMetrics{
			TotalContractions:      10,
			GoodContractions:       9,
			MVCComplianceRate:      0.9,
			DurationComplianceRate: 1.0,
			OverallComplianceRate:  0.9,
			MVCThreshold:           60,
		},
		Timing: TimingMetrics{
			AvgDurationMS:    2400,
			MaxDurationMS:    2800,
			DurationTargetMS: 2000,
			TimeUnderTension: 24000,
		},
		Activation:         ActivationMetrics{RMSMean: 42.5, PeakAmp: 81.2},
		SignalQualityScore: 0.95,
	}

	notes := BuildChannelNotes(a)
	for _, want := range []string{
		"Channel EMG Left",
		"10 total, 9 good (90% compliant)",
		"2.4s avg / 2.8s max (target 2.0s)",
		"Consistent executions",
	} {
		if !strings.Contains(notes, want) {
			t.Errorf("notes missing %q:\n%s", want, notes)
		}
	}
}

func TestBuildChannelNotesAssessments(t *testing.T) {
	tests := []struct {
		name string
		a    ChannelAnalytics
		want string
	}{
		{
			"unreliable signal",
			ChannelAnalytics{Channel: "ch", SignalQualityScore: 0.2},
			"with caution",
		},
		{
			"silent channel",
			ChannelAnalytics{Channel: "ch", SignalQualityScore: 0.8},
			"No contractions detected",
		},
		{
			"intensity shortfall",
			ChannelAnalytics{
				Channel:            "ch",
				SignalQualityScore: 0.8,
				Quality: QualityMetrics{
					TotalContractions:      10,
					MVCComplianceRate:      0.4,
					DurationComplianceRate: 0.9,
					OverallComplianceRate:  0.4,
				},
			},
			"intensity falls short",
		},
		{
			"duration shortfall",
			ChannelAnalytics{
				Channel:            "ch",
				SignalQualityScore: 0.8,
				Quality: QualityMetrics{
					TotalContractions:      10,
					MVCComplianceRate:      0.9,
					DurationComplianceRate: 0.4,
					OverallComplianceRate:  0.4,
				},
			},
			"holds are cut short",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notes := BuildChannelNotes(tt.a)
			if !strings.Contains(notes, tt.want) {
				t.Fatalf("notes missing %q:\n%s", tt.want, notes)
			}
		})
	}
}

func TestFormatMS(t *testing.T) {
	tests := []struct {
		ms   float64
		want string
	}{
		{0, "0ms"},
		{-5, "0ms"},
		{250, "250ms"},
		{999.6, "1000ms"},
		{1000, "1.0s"},
		{2200, "2.2s"},
	}
	for _, tt := range tests {
		if got := formatMS(tt.ms); got != tt.want {
			t.Errorf("formatMS(%v) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}
