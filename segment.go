package emg

import "math"

// SegmentConfig controls contraction detection over an envelope.
type SegmentConfig struct {
	// Threshold is the activation level. It is an absolute amplitude unless
	// MVCReference is positive, in which case it is a fraction of that
	// reference (e.g. 0.10 for 10% MVC).
	Threshold    float64 `json:"threshold"`
	MVCReference float64 `json:"mvc_reference,omitempty"`
	// MergeGapMS merges a below-threshold dip shorter than this into the
	// surrounding activation instead of splitting it.
	MergeGapMS float64 `json:"merge_gap_ms"`
	// MinDurationMS discards runs shorter than this as noise.
	MinDurationMS float64 `json:"min_duration_ms"`
}

// DefaultSegmentConfig returns the standard detection setup: 10% MVC
// activation threshold, 200 ms merge gap, 100 ms minimum duration.
func DefaultSegmentConfig() SegmentConfig {
	return SegmentConfig{
		Threshold:     0.10,
		MergeGapMS:    200,
		MinDurationMS: 100,
	}
}

// EffectiveThreshold resolves the configured threshold to absolute amplitude
// units.
func (c SegmentConfig) EffectiveThreshold() float64 {
	if c.MVCReference > 0 {
		return c.Threshold * c.MVCReference
	}
	return c.Threshold
}

// Segmenter lazily scans an envelope for contractions. The same envelope may
// be re-segmented under different configurations; Reset restarts the scan
// without side effects on the envelope.
type Segmenter struct {
	env        Envelope
	threshold  float64
	gapSamples int
	minSamples int
	next       int
}

// NewSegmenter builds a restartable contraction iterator over an envelope.
func NewSegmenter(env Envelope, cfg SegmentConfig) *Segmenter {
	gap := int(math.Round(cfg.MergeGapMS / 1000.0 * env.SampleRate))
	min := int(math.Round(cfg.MinDurationMS / 1000.0 * env.SampleRate))
	return &Segmenter{
		env:        env,
		threshold:  cfg.EffectiveThreshold(),
		gapSamples: gap,
		minSamples: min,
	}
}

// Reset restarts the scan from the beginning of the envelope.
func (s *Segmenter) Reset() {
	s.next = 0
}

// Next returns the next contraction in onset order. The second return value
// is false once the envelope is exhausted. An envelope with no
// threshold crossings yields no contractions.
func (s *Segmenter) Next() (Contraction, bool) {
	v := s.env.Values
	for {
		start := s.next
		for start < len(v) && v[start] < s.threshold {
			start++
		}
		if start >= len(v) {
			s.next = len(v)
			return Contraction{}, false
		}

		// Extend the run, absorbing sub-gap dips below threshold.
		end := start
		i := start
		for i < len(v) {
			if v[i] >= s.threshold {
				end = i
				i++
				continue
			}
			j := i
			for j < len(v) && v[j] < s.threshold {
				j++
			}
			if j < len(v) && j-i < s.gapSamples {
				i = j
				continue
			}
			break
		}
		s.next = i

		if end-start+1 < s.minSamples {
			continue
		}
		return s.contraction(start, end), true
	}
}

func (s *Segmenter) contraction(start, end int) Contraction {
	v := s.env.Values
	peak := 0.0
	sum := 0.0
	for i := start; i <= end; i++ {
		if v[i] > peak {
			peak = v[i]
		}
		sum += v[i]
	}

	onset := float64(start) / s.env.SampleRate
	offset := float64(end+1) / s.env.SampleRate
	return Contraction{
		OnsetS:        onset,
		OffsetS:       offset,
		DurationMS:    (offset - onset) * 1000.0,
		PeakAmplitude: peak,
		MeanAmplitude: sum / float64(end-start+1),
	}
}

// SegmentAll drains a fresh scan of the envelope into a slice.
func SegmentAll(env Envelope, cfg SegmentConfig) []Contraction {
	seg := NewSegmenter(env, cfg)
	var out []Contraction
	for {
		c, ok := seg.Next()
		if !ok {
			return out
		}
		out = append(out, c)
	}
}
