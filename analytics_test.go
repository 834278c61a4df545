package emg

import (
	"math"
	"testing"
)

func sineSignal(label string, rate, freq, amp float64, n int) ChannelSignal {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/rate)
	}
	return ChannelSignal{Label: label, SampleRate: rate, Samples: samples}
}

func TestAggregateChannelNoContractions(t *testing.T) {
	sig := ChannelSignal{Label: "ch1", SampleRate: 1000, Samples: make([]float64, 2000)}
	for i := range sig.Samples {
		sig.Samples[i] = 0.001
	}

	a, err := AggregateChannel(sig, Envelope{SampleRate: 1000, Values: sig.Samples}, nil, nil,
		ChannelThresholds{MVCValue: 100, MVCThreshold: 75, DurationTargetMS: 2000}, DefaultSpectralConfig())
	if err != nil {
		t.Fatalf("AggregateChannel error: %v", err)
	}

	q := a.Quality
	if q.TotalContractions != 0 || q.GoodContractions != 0 {
		t.Fatalf("counts = %+v, want zeros", q)
	}
	for name, rate := range map[string]float64{
		"mvc":      q.MVCComplianceRate,
		"duration": q.DurationComplianceRate,
		"overall":  q.OverallComplianceRate,
	} {
		if rate != 0 {
			t.Errorf("%s compliance rate = %v, want 0", name, rate)
		}
		if math.IsNaN(rate) {
			t.Errorf("%s compliance rate is NaN", name)
		}
	}
	if a.Timing.AvgDurationMS != 0 || a.Timing.TimeUnderTension != 0 {
		t.Errorf("timing = %+v, want zeros", a.Timing)
	}
	if q.MVCValue != 100 {
		t.Errorf("mvc value = %v, want configured 100", q.MVCValue)
	}
}

func TestAggregateChannelMisalignedInputs(t *testing.T) {
	sig := ChannelSignal{Label: "ch1", SampleRate: 1000, Samples: make([]float64, 100)}
	contractions := []Contraction{{DurationMS: 2000}}

	_, err := AggregateChannel(sig, Envelope{SampleRate: 1000, Values: sig.Samples}, contractions, nil,
		ChannelThresholds{MVCValue: 100}, DefaultSpectralConfig())
	if err == nil {
		t.Fatal("expected error for misaligned contraction and quality slices")
	}
}

func TestTallyQualityCountsAndFallback(t *testing.T) {
	contractions := []Contraction{
		{PeakAmplitude: 120, DurationMS: 2200},
		{PeakAmplitude: 80, DurationMS: 2500},
		{PeakAmplitude: 110, DurationMS: 1500},
		{PeakAmplitude: 60, DurationMS: 900},
	}
	qualities, err := ClassifyAll(contractions, 100, 2000)
	if err != nil {
		t.Fatalf("ClassifyAll error: %v", err)
	}

	q := tallyQuality(contractions, qualities, ChannelThresholds{MVCThreshold: 100})
	if q.TotalContractions != 4 || q.GoodContractions != 1 {
		t.Fatalf("total=%d good=%d, want 4 and 1", q.TotalContractions, q.GoodContractions)
	}
	if q.MVCCompliant != 2 || q.DurationCompliant != 2 || q.EitherCompliant != 3 {
		t.Fatalf("mvc=%d dur=%d either=%d, want 2, 2, 3", q.MVCCompliant, q.DurationCompliant, q.EitherCompliant)
	}
	if math.Abs(q.MVCComplianceRate-0.5) > 1e-12 || math.Abs(q.OverallComplianceRate-0.25) > 1e-12 {
		t.Fatalf("rates = %+v, want 0.5 and 0.25", q)
	}
	// Without a calibrated MVC the observed peak stands in.
	if q.MVCValue != 120 {
		t.Fatalf("mvc value = %v, want observed peak 120", q.MVCValue)
	}
}

func TestActivationStatsConstantSignal(t *testing.T) {
	samples := make([]float64, 3000)
	for i := range samples {
		samples[i] = -2
	}

	m := activationStats(samples, DefaultSpectralConfig())
	if math.Abs(m.RMSMean-2) > 1e-9 {
		t.Errorf("rms mean %v, want 2", m.RMSMean)
	}
	if math.Abs(m.MAVMean-2) > 1e-9 {
		t.Errorf("mav mean %v, want 2", m.MAVMean)
	}
	if m.RMSStd > 1e-9 || m.MAVStd > 1e-9 {
		t.Errorf("std rms=%v mav=%v, want 0", m.RMSStd, m.MAVStd)
	}
	if m.PeakAmp != 2 {
		t.Errorf("peak %v, want 2", m.PeakAmp)
	}
}

func TestFatigueStatsSineFrequency(t *testing.T) {
	// A pure 50 Hz tone should land both spectral centroids near 50 Hz.
	sig := sineSignal("ch1", 1000, 50, 1, 4096)

	f := fatigueStats(sig.Samples, sig.SampleRate, DefaultSpectralConfig())
	if f.SpectralWindows == 0 {
		t.Fatal("no spectral windows computed")
	}
	if math.Abs(f.MNFMeanHz-50) > 2 {
		t.Errorf("mean frequency %v Hz, want about 50", f.MNFMeanHz)
	}
	if math.Abs(f.MDFMeanHz-50) > 2 {
		t.Errorf("median frequency %v Hz, want about 50", f.MDFMeanHz)
	}
	if f.FatigueIndexMean <= 0 {
		t.Errorf("fatigue index %v, want positive", f.FatigueIndexMean)
	}
}

func TestFatigueStatsTracksSpectralShift(t *testing.T) {
	// First half at 120 Hz, second half at 60 Hz: the Dimitrov index rises
	// as the spectrum compresses, so the change percentage is positive.
	const rate = 1000.0
	samples := make([]float64, 8192)
	for i := range samples {
		freq := 120.0
		if i >= len(samples)/2 {
			freq = 60.0
		}
		samples[i] = math.Sin(2 * math.Pi * freq * float64(i) / rate)
	}

	f := fatigueStats(samples, rate, DefaultSpectralConfig())
	if f.SpectralWindows < 2 {
		t.Fatalf("spectral windows = %d, want at least 2", f.SpectralWindows)
	}
	if f.FatigueChangePct <= 0 {
		t.Errorf("fatigue change %v%%, want positive for a downward frequency shift", f.FatigueChangePct)
	}
}

func TestFatigueStatsSilentSignal(t *testing.T) {
	f := fatigueStats(make([]float64, 4096), 1000, DefaultSpectralConfig())
	if f.SpectralWindows != 0 {
		t.Fatalf("spectral windows = %d for silent signal, want 0", f.SpectralWindows)
	}
	if f.MNFMeanHz != 0 || f.FatigueIndexMean != 0 {
		t.Fatalf("fatigue stats = %+v, want zeros", f)
	}
}

func TestSignalQuality(t *testing.T) {
	rate := 1000.0

	if got := signalQuality(make([]float64, 1000), rate, 3, 3); got != 0 {
		t.Errorf("all-zero signal quality = %v, want 0", got)
	}

	clean := sineSignal("ch1", rate, 80, 1, 4000)
	if got := signalQuality(clean.Samples, rate, 3, 3); got != 1 {
		t.Errorf("clean adequate signal quality = %v, want 1", got)
	}

	if got := signalQuality(clean.Samples, rate, 1, 4); math.Abs(got-0.625) > 1e-9 {
		t.Errorf("under-count signal quality = %v, want 0.625", got)
	}

	// Hard-clipped square wave: every half-period is a plateau at the peak.
	clipped := make([]float64, 4000)
	for i := range clipped {
		if (i/100)%2 == 0 {
			clipped[i] = 1
		} else {
			clipped[i] = -1
		}
	}
	if got := signalQuality(clipped, rate, 3, 3); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("saturated signal quality = %v, want 0.5", got)
	}
}

func TestWindowsShortRecording(t *testing.T) {
	wins := windows(300, DefaultSpectralConfig())
	if len(wins) != 1 || wins[0].start != 0 || wins[0].end != 300 {
		t.Fatalf("windows = %+v, want a single whole-recording window", wins)
	}
}
