package emg

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SpectralConfig controls the windowing used for time- and frequency-domain
// statistics. Window length and overlap are clinical tuning constants; the
// defaults are starting points pending domain calibration.
type SpectralConfig struct {
	// WindowSamples is the analysis window length. Recordings shorter than
	// one window are analyzed as a single window.
	WindowSamples int `json:"window_samples"`
	// OverlapPct is the window overlap percentage in [0, 90].
	OverlapPct float64 `json:"overlap_pct"`
}

// DefaultSpectralConfig returns 1024-sample Hann windows with 50% overlap.
func DefaultSpectralConfig() SpectralConfig {
	return SpectralConfig{WindowSamples: 1024, OverlapPct: 50}
}

// ChannelThresholds carries the resolved per-channel targets the aggregator
// reports against.
type ChannelThresholds struct {
	// MVCValue is the calibration reference amplitude. Zero falls back to the
	// highest contraction peak observed in the session.
	MVCValue float64 `json:"mvc_value"`
	// MVCThreshold is the absolute amplitude a compliant contraction must
	// reach.
	MVCThreshold float64 `json:"mvc_threshold"`
	// DurationTargetMS is the duration a compliant contraction must hold.
	DurationTargetMS float64 `json:"duration_target_ms"`
	// ExpectedContractions feeds the signal-quality adequacy term. Zero uses
	// a nominal minimum of three.
	ExpectedContractions int `json:"expected_contractions,omitempty"`
}

const nominalAdequateContractions = 3

// AggregateChannel reduces one channel's contractions, envelope and raw
// signal to its session analytics. Rates are 0, never NaN, when there are no
// contractions. The contraction and quality slices must be aligned.
func AggregateChannel(
	signal ChannelSignal,
	env Envelope,
	contractions []Contraction,
	qualities []ContractionQuality,
	thresholds ChannelThresholds,
	cfg SpectralConfig,
) (ChannelAnalytics, error) {
	if err := signal.validate(); err != nil {
		return ChannelAnalytics{}, err
	}
	if len(contractions) != len(qualities) {
		return ChannelAnalytics{}, fmt.Errorf("channel %q: %d contractions vs %d quality records", signal.Label, len(contractions), len(qualities))
	}

	a := ChannelAnalytics{Channel: signal.Label}
	a.Quality = tallyQuality(contractions, qualities, thresholds)
	a.Timing = tallyTiming(contractions, thresholds.DurationTargetMS)
	a.Activation = activationStats(signal.Samples, cfg)
	a.Fatigue = fatigueStats(signal.Samples, signal.SampleRate, cfg)
	a.SignalQualityScore = signalQuality(signal.Samples, signal.SampleRate, len(contractions), thresholds.ExpectedContractions)

	a.Contractions = make([]ScoredContraction, len(contractions))
	for i := range contractions {
		a.Contractions[i] = ScoredContraction{Contraction: contractions[i], Quality: qualities[i]}
	}
	return a, nil
}

func tallyQuality(contractions []Contraction, qualities []ContractionQuality, thresholds ChannelThresholds) QualityMetrics {
	q := QualityMetrics{
		TotalContractions: len(contractions),
		MVCValue:          thresholds.MVCValue,
		MVCThreshold:      thresholds.MVCThreshold,
	}
	maxPeak := 0.0
	for i, qual := range qualities {
		if qual.MeetsMVC {
			q.MVCCompliant++
		}
		if qual.MeetsDuration {
			q.DurationCompliant++
		}
		if qual.MeetsMVC || qual.MeetsDuration {
			q.EitherCompliant++
		}
		if qual.IsGood {
			q.GoodContractions++
		}
		if contractions[i].PeakAmplitude > maxPeak {
			maxPeak = contractions[i].PeakAmplitude
		}
	}
	if q.MVCValue == 0 {
		q.MVCValue = maxPeak
	}
	if q.TotalContractions > 0 {
		n := float64(q.TotalContractions)
		q.MVCComplianceRate = float64(q.MVCCompliant) / n
		q.DurationComplianceRate = float64(q.DurationCompliant) / n
		q.OverallComplianceRate = float64(q.GoodContractions) / n
	}
	return q
}

func tallyTiming(contractions []Contraction, durationTargetMS float64) TimingMetrics {
	t := TimingMetrics{DurationTargetMS: durationTargetMS}
	if len(contractions) == 0 {
		return t
	}

	durations := make([]float64, len(contractions))
	for i, c := range contractions {
		durations[i] = c.DurationMS
		t.TimeUnderTension += c.DurationMS
	}
	t.AvgDurationMS = stat.Mean(durations, nil)
	t.MaxDurationMS = floats.Max(durations)
	t.MinDurationMS = floats.Min(durations)
	return t
}

func activationStats(samples []float64, cfg SpectralConfig) ActivationMetrics {
	var rmsPerWindow, mavPerWindow []float64
	for _, w := range windows(len(samples), cfg) {
		seg := samples[w.start:w.end]
		sumSq, sumAbs := 0.0, 0.0
		for _, v := range seg {
			sumSq += v * v
			sumAbs += math.Abs(v)
		}
		n := float64(len(seg))
		rmsPerWindow = append(rmsPerWindow, math.Sqrt(sumSq/n))
		mavPerWindow = append(mavPerWindow, sumAbs/n)
	}

	m := ActivationMetrics{
		RMSMean: stat.Mean(rmsPerWindow, nil),
		RMSStd:  stdOrZero(rmsPerWindow),
		MAVMean: stat.Mean(mavPerWindow, nil),
		MAVStd:  stdOrZero(mavPerWindow),
	}
	for _, v := range samples {
		if abs := math.Abs(v); abs > m.PeakAmp {
			m.PeakAmp = abs
		}
	}
	return m
}

func fatigueStats(samples []float64, rate float64, cfg SpectralConfig) FatigueMetrics {
	wins := windows(len(samples), cfg)

	var mnf, mdf, fi []float64
	for _, w := range wins {
		spec := powerSpectrum(samples[w.start:w.end], rate)
		if spec.totalPower <= 0 {
			continue
		}
		mnf = append(mnf, spec.meanFrequency)
		mdf = append(mdf, spec.medianFrequency)
		fi = append(fi, spec.fatigueIndex)
	}

	f := FatigueMetrics{SpectralWindows: len(mnf)}
	if len(mnf) == 0 {
		return f
	}
	f.MNFMeanHz = stat.Mean(mnf, nil)
	f.MNFStdHz = stdOrZero(mnf)
	f.MDFMeanHz = stat.Mean(mdf, nil)
	f.MDFStdHz = stdOrZero(mdf)
	f.FatigueIndexMean = stat.Mean(fi, nil)
	f.FatigueIndexStd = stdOrZero(fi)
	if first := fi[0]; first != 0 {
		f.FatigueChangePct = (fi[len(fi)-1] - first) / math.Abs(first) * 100.0
	}
	return f
}

type spectrum struct {
	totalPower      float64
	meanFrequency   float64
	medianFrequency float64
	fatigueIndex    float64
}

// powerSpectrum computes a Hann-windowed periodogram and its summary
// frequencies. The DC bin is excluded so the inverse spectral moment of the
// Dimitrov index stays finite.
func powerSpectrum(seg []float64, rate float64) spectrum {
	n := len(seg)
	if n < 4 {
		return spectrum{}
	}

	windowed := make([]float64, n)
	for i, v := range seg {
		hann := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
		windowed[i] = v * hann
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, windowed)

	var (
		total  float64
		m1     float64 // first moment, for MNF
		mNeg1  float64 // Dimitrov numerator
		m5     float64 // Dimitrov denominator
		powers = make([]float64, len(coeffs))
	)
	binHz := rate / float64(n)
	for k := 1; k < len(coeffs); k++ {
		f := float64(k) * binHz
		p := real(coeffs[k])*real(coeffs[k]) + imag(coeffs[k])*imag(coeffs[k])
		powers[k] = p
		total += p
		m1 += f * p
		mNeg1 += p / f
		m5 += math.Pow(f, 5) * p
	}
	if total <= 0 {
		return spectrum{}
	}

	s := spectrum{
		totalPower:    total,
		meanFrequency: m1 / total,
	}
	if m5 > 0 {
		s.fatigueIndex = mNeg1 / m5
	}

	// Median frequency: first bin where cumulative power crosses half the
	// total.
	cum := 0.0
	for k := 1; k < len(powers); k++ {
		cum += powers[k]
		if cum >= total/2 {
			s.medianFrequency = float64(k) * binHz
			break
		}
	}
	return s
}

// signalQuality is a [0,1] composite of contraction-count adequacy and
// absence of amplifier saturation. It flags unreliable channels downstream
// but never gates scoring.
func signalQuality(samples []float64, rate float64, contractionCount, expectedContractions int) float64 {
	maxAbs := 0.0
	for _, v := range samples {
		if abs := math.Abs(v); abs > maxAbs {
			maxAbs = abs
		}
	}
	if maxAbs == 0 {
		return 0
	}

	expected := expectedContractions
	if expected <= 0 {
		expected = nominalAdequateContractions
	}
	adequacy := float64(contractionCount) / float64(expected)
	if adequacy > 1 {
		adequacy = 1
	}

	// A flat top held at the absolute peak for longer than 10 ms reads as
	// amplifier saturation.
	plateauLimit := int(math.Round(0.010 * rate))
	if plateauLimit < 2 {
		plateauLimit = 2
	}
	longest, run := 0, 0
	for _, v := range samples {
		if math.Abs(math.Abs(v)-maxAbs) < maxAbs*1e-9 {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	saturation := float64(longest) / float64(plateauLimit)
	if saturation > 1 {
		saturation = 1
	}
	if longest < 2 {
		saturation = 0
	}

	return clamp(0.5*adequacy+0.5*(1-saturation), 0, 1)
}

type window struct{ start, end int }

// windows slices [0,n) into overlapping analysis windows. A recording
// shorter than one window is analyzed whole.
func windows(n int, cfg SpectralConfig) []window {
	size := cfg.WindowSamples
	if size <= 0 {
		size = DefaultSpectralConfig().WindowSamples
	}
	if n <= size {
		return []window{{0, n}}
	}

	overlap := cfg.OverlapPct
	if overlap < 0 {
		overlap = 0
	}
	if overlap > 90 {
		overlap = 90
	}
	hop := int(float64(size) * (1 - overlap/100.0))
	if hop < 1 {
		hop = 1
	}

	var out []window
	for start := 0; start+size <= n; start += hop {
		out = append(out, window{start, start + size})
	}
	return out
}

func stdOrZero(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return stat.StdDev(xs, nil)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
