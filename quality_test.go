package emg

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name             string
		peak, durationMS float64
		want             ContractionQuality
	}{
		{"meets both", 120, 2200, ContractionQuality{MeetsMVC: true, MeetsDuration: true, IsGood: true}},
		{"below mvc", 80, 2200, ContractionQuality{MeetsMVC: false, MeetsDuration: true, IsGood: false}},
		{"too short", 120, 1500, ContractionQuality{MeetsMVC: true, MeetsDuration: false, IsGood: false}},
		{"fails both", 80, 1500, ContractionQuality{}},
		{"exactly at thresholds", 100, 2000, ContractionQuality{MeetsMVC: true, MeetsDuration: true, IsGood: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Contraction{PeakAmplitude: tt.peak, DurationMS: tt.durationMS}
			got, err := Classify(c, 100, 2000)
			if err != nil {
				t.Fatalf("Classify error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Classify = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestClassifyMissingThresholds(t *testing.T) {
	c := Contraction{PeakAmplitude: 120, DurationMS: 2200}

	if _, err := Classify(c, 0, 2000); !errors.Is(err, ErrMissingThreshold) {
		t.Fatalf("zero mvc threshold: err = %v, want ErrMissingThreshold", err)
	}
	if _, err := Classify(c, -5, 2000); !errors.Is(err, ErrMissingThreshold) {
		t.Fatalf("negative mvc threshold: err = %v, want ErrMissingThreshold", err)
	}
	if _, err := Classify(c, 100, 0); !errors.Is(err, ErrMissingThreshold) {
		t.Fatalf("zero duration target: err = %v, want ErrMissingThreshold", err)
	}
}

func TestClassifyAll(t *testing.T) {
	contractions := []Contraction{
		{PeakAmplitude: 120, DurationMS: 2200},
		{PeakAmplitude: 80, DurationMS: 2500},
	}
	got, err := ClassifyAll(contractions, 100, 2000)
	if err != nil {
		t.Fatalf("ClassifyAll error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d qualities, want 2", len(got))
	}
	if !got[0].IsGood || got[1].IsGood {
		t.Fatalf("qualities = %+v, want first good and second not", got)
	}

	if _, err := ClassifyAll(contractions, 0, 2000); !errors.Is(err, ErrMissingThreshold) {
		t.Fatalf("err = %v, want ErrMissingThreshold", err)
	}
}
