package emg

import (
	"math"
	"testing"
)

// stepEnvelope builds an envelope that sits at base everywhere and at level
// over each [start, end) sample range.
func stepEnvelope(rate float64, n int, base, level float64, runs ...[2]int) Envelope {
	v := make([]float64, n)
	for i := range v {
		v[i] = base
	}
	for _, r := range runs {
		for i := r[0]; i < r[1]; i++ {
			v[i] = level
		}
	}
	return Envelope{SampleRate: rate, Values: v}
}

func TestSegmentSingleActivation(t *testing.T) {
	// 120-unit plateau from t=1.0s to t=3.2s at 100 Hz.
	env := stepEnvelope(100, 500, 0, 120, [2]int{100, 320})
	cfg := SegmentConfig{Threshold: 50, MergeGapMS: 200, MinDurationMS: 100}

	got := SegmentAll(env, cfg)
	if len(got) != 1 {
		t.Fatalf("got %d contractions, want 1", len(got))
	}
	c := got[0]
	if math.Abs(c.OnsetS-1.0) > 1e-9 {
		t.Errorf("onset %v, want 1.0", c.OnsetS)
	}
	if math.Abs(c.OffsetS-3.2) > 1e-9 {
		t.Errorf("offset %v, want 3.2", c.OffsetS)
	}
	if math.Abs(c.DurationMS-2200) > 1e-9 {
		t.Errorf("duration %vms, want 2200", c.DurationMS)
	}
	if c.PeakAmplitude != 120 {
		t.Errorf("peak %v, want 120", c.PeakAmplitude)
	}
	if math.Abs(c.MeanAmplitude-120) > 1e-9 {
		t.Errorf("mean %v, want 120", c.MeanAmplitude)
	}
}

func TestSegmentMergeGap(t *testing.T) {
	// Two 200 ms runs at 1000 Hz separated by a 100 ms dip.
	env := stepEnvelope(1000, 1000, 0, 100, [2]int{100, 300}, [2]int{400, 600})

	merged := SegmentAll(env, SegmentConfig{Threshold: 50, MergeGapMS: 200, MinDurationMS: 100})
	if len(merged) != 1 {
		t.Fatalf("gap below merge limit: got %d contractions, want 1", len(merged))
	}
	if math.Abs(merged[0].DurationMS-500) > 1e-9 {
		t.Errorf("merged duration %vms, want 500", merged[0].DurationMS)
	}
	if math.Abs(merged[0].OnsetS-0.1) > 1e-9 || math.Abs(merged[0].OffsetS-0.6) > 1e-9 {
		t.Errorf("merged span [%v, %v], want [0.1, 0.6]", merged[0].OnsetS, merged[0].OffsetS)
	}

	split := SegmentAll(env, SegmentConfig{Threshold: 50, MergeGapMS: 50, MinDurationMS: 100})
	if len(split) != 2 {
		t.Fatalf("gap above merge limit: got %d contractions, want 2", len(split))
	}
}

func TestSegmentMinDuration(t *testing.T) {
	// A 50 ms blip and a 300 ms contraction; only the latter survives.
	env := stepEnvelope(1000, 2000, 0, 100, [2]int{100, 150}, [2]int{1000, 1300})

	got := SegmentAll(env, SegmentConfig{Threshold: 50, MergeGapMS: 100, MinDurationMS: 100})
	if len(got) != 1 {
		t.Fatalf("got %d contractions, want 1", len(got))
	}
	if math.Abs(got[0].OnsetS-1.0) > 1e-9 {
		t.Errorf("onset %v, want 1.0", got[0].OnsetS)
	}
}

func TestSegmentNoCrossings(t *testing.T) {
	env := stepEnvelope(1000, 1000, 10, 10)
	got := SegmentAll(env, SegmentConfig{Threshold: 50, MergeGapMS: 200, MinDurationMS: 100})
	if len(got) != 0 {
		t.Fatalf("got %d contractions, want 0", len(got))
	}
}

func TestSegmenterResetAndReuse(t *testing.T) {
	env := stepEnvelope(1000, 2000, 0, 100, [2]int{100, 400}, [2]int{1000, 1400})
	seg := NewSegmenter(env, SegmentConfig{Threshold: 50, MergeGapMS: 100, MinDurationMS: 100})

	var first []Contraction
	for {
		c, ok := seg.Next()
		if !ok {
			break
		}
		first = append(first, c)
	}
	if len(first) != 2 {
		t.Fatalf("first pass: got %d contractions, want 2", len(first))
	}
	if _, ok := seg.Next(); ok {
		t.Fatal("exhausted segmenter yielded another contraction")
	}

	seg.Reset()
	var second []Contraction
	for {
		c, ok := seg.Next()
		if !ok {
			break
		}
		second = append(second, c)
	}
	if len(second) != len(first) {
		t.Fatalf("second pass: got %d contractions, want %d", len(second), len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("contraction %d differs after Reset: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestEffectiveThresholdMVCFraction(t *testing.T) {
	cfg := SegmentConfig{Threshold: 0.10, MVCReference: 200}
	if got := cfg.EffectiveThreshold(); math.Abs(got-20) > 1e-12 {
		t.Fatalf("effective threshold %v, want 20", got)
	}
	abs := SegmentConfig{Threshold: 35}
	if got := abs.EffectiveThreshold(); got != 35 {
		t.Fatalf("effective threshold %v, want 35", got)
	}
}
