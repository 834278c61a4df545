package emg

import "math"

// FilterConfig controls signal conditioning ahead of envelope extraction.
// The smoothing window is a clinical tuning constant; the default is a
// starting point, not a calibrated value.
type FilterConfig struct {
	// HighPassHz and LowPassHz bound the band-pass pre-filter. Zero disables
	// the corresponding stage.
	HighPassHz float64 `json:"high_pass_hz"`
	LowPassHz  float64 `json:"low_pass_hz"`
	// NotchHz removes mains interference. Zero disables the notch.
	NotchHz float64 `json:"notch_hz"`
	// SmoothingWindowMS is the moving-RMS integration window.
	SmoothingWindowMS float64 `json:"smoothing_window_ms"`
}

// DefaultFilterConfig returns the standard surface-EMG conditioning setup:
// 20-450 Hz band-pass, 50 Hz notch, 250 ms RMS window.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		HighPassHz:        20,
		LowPassHz:         450,
		NotchHz:           50,
		SmoothingWindowMS: 250,
	}
}

const notchQ = 30.0

// ComputeEnvelope conditions a raw channel and extracts its amplitude
// envelope: optional band-pass and notch filtering, full-wave rectification,
// then a moving-RMS over the configured window. The output has one value per
// input sample. A signal shorter than one window is smoothed over the samples
// available; an all-zero signal yields an all-zero envelope.
func ComputeEnvelope(signal ChannelSignal, cfg FilterConfig) (Envelope, error) {
	if err := signal.validate(); err != nil {
		return Envelope{}, err
	}

	work := append([]float64(nil), signal.Samples...)

	if cfg.HighPassHz > 0 {
		highPass(work, cfg.HighPassHz, signal.SampleRate)
	}
	if cfg.LowPassHz > 0 && cfg.LowPassHz < signal.SampleRate/2 {
		lowPass(work, cfg.LowPassHz, signal.SampleRate)
	}
	if cfg.NotchHz > 0 && cfg.NotchHz < signal.SampleRate/2 {
		notch(work, cfg.NotchHz, signal.SampleRate)
	}

	for i, v := range work {
		work[i] = math.Abs(v)
	}

	window := int(math.Round(cfg.SmoothingWindowMS / 1000.0 * signal.SampleRate))
	if window < 1 {
		window = 1
	}
	if window > len(work) {
		window = len(work)
	}

	return Envelope{
		SampleRate: signal.SampleRate,
		Values:     movingRMS(work, window),
	}, nil
}

// highPass applies a first-order RC high-pass in place.
func highPass(x []float64, cutoffHz, rate float64) {
	rc := 1.0 / (2 * math.Pi * cutoffHz)
	dt := 1.0 / rate
	alpha := rc / (rc + dt)

	prevIn := x[0]
	prevOut := 0.0
	x[0] = 0
	for i := 1; i < len(x); i++ {
		out := alpha * (prevOut + x[i] - prevIn)
		prevIn = x[i]
		prevOut = out
		x[i] = out
	}
}

// lowPass applies a first-order RC low-pass in place.
func lowPass(x []float64, cutoffHz, rate float64) {
	rc := 1.0 / (2 * math.Pi * cutoffHz)
	dt := 1.0 / rate
	alpha := dt / (rc + dt)

	prev := x[0]
	for i := 1; i < len(x); i++ {
		prev += alpha * (x[i] - prev)
		x[i] = prev
	}
}

// notch applies a biquad notch centered on f0 in place.
func notch(x []float64, f0, rate float64) {
	w0 := 2 * math.Pi * f0 / rate
	alpha := math.Sin(w0) / (2 * notchQ)
	cosW0 := math.Cos(w0)

	a0 := 1 + alpha
	b0 := 1 / a0
	b1 := -2 * cosW0 / a0
	b2 := 1 / a0
	a1 := -2 * cosW0 / a0
	a2 := (1 - alpha) / a0

	var x1, x2, y1, y2 float64
	for i, in := range x {
		out := b0*in + b1*x1 + b2*x2 - a1*y1 - a2*y2
		x2, x1 = x1, in
		y2, y1 = y1, out
		x[i] = out
	}
}

// movingRMS computes a trailing root-mean-square over a fixed window,
// shrinking the window at the head so the output length matches the input.
func movingRMS(x []float64, window int) []float64 {
	out := make([]float64, len(x))
	sumSq := 0.0
	for i, v := range x {
		sumSq += v * v
		if i >= window {
			old := x[i-window]
			sumSq -= old * old
		}
		n := i + 1
		if n > window {
			n = window
		}
		if sumSq < 0 {
			sumSq = 0 // float drift guard
		}
		out[i] = math.Sqrt(sumSq / float64(n))
	}
	return out
}
