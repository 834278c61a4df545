package emg

import "fmt"

// Classify evaluates one contraction against the effective MVC threshold
// (absolute amplitude units) and duration target (ms). All three flags are
// always computed; a false flag is a valid outcome, not a missing one.
// Callers without resolved thresholds must resolve them first: non-positive
// thresholds are an input error here, never a silent default.
func Classify(c Contraction, mvcThreshold, durationTargetMS float64) (ContractionQuality, error) {
	if mvcThreshold <= 0 {
		return ContractionQuality{}, fmt.Errorf("mvc threshold %.3f: %w", mvcThreshold, ErrMissingThreshold)
	}
	if durationTargetMS <= 0 {
		return ContractionQuality{}, fmt.Errorf("duration target %.1fms: %w", durationTargetMS, ErrMissingThreshold)
	}

	meetsMVC := c.PeakAmplitude >= mvcThreshold
	meetsDuration := c.DurationMS >= durationTargetMS
	return ContractionQuality{
		MeetsMVC:      meetsMVC,
		MeetsDuration: meetsDuration,
		IsGood:        meetsMVC && meetsDuration,
	}, nil
}

// ClassifyAll classifies a contraction slice in order.
func ClassifyAll(contractions []Contraction, mvcThreshold, durationTargetMS float64) ([]ContractionQuality, error) {
	out := make([]ContractionQuality, len(contractions))
	for i, c := range contractions {
		q, err := Classify(c, mvcThreshold, durationTargetMS)
		if err != nil {
			return nil, fmt.Errorf("contraction %d: %w", i, err)
		}
		out[i] = q
	}
	return out, nil
}
