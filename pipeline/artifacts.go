package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// writeArtifacts emits the run's bundle: manifest.json, result.json, the
// contraction table, the optional envelope table, and the clinician notes.
func writeArtifacts(res *SessionResult, opts Options) (*ArtifactBundle, error) {
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format != "parquet" && format != "csv" {
		return nil, fmt.Errorf("unsupported format %q (expected parquet|csv)", format)
	}
	if err := ensureOutputDir(opts.OutDir, opts.Overwrite); err != nil {
		return nil, err
	}

	bundle := &ArtifactBundle{OutputDir: opts.OutDir}

	bundle.ResultPath = filepath.Join(opts.OutDir, "result.json")
	if err := writeJSON(bundle.ResultPath, res); err != nil {
		return nil, fmt.Errorf("write result.json: %w", err)
	}

	contractions := contractionRows(res)
	bundle.ContractionsPath = filepath.Join(opts.OutDir, "contractions."+format)
	switch format {
	case "csv":
		if err := writeContractionCSV(bundle.ContractionsPath, contractions); err != nil {
			return nil, fmt.Errorf("write contraction csv: %w", err)
		}
	case "parquet":
		if err := writeContractionParquet(bundle.ContractionsPath, contractions); err != nil {
			return nil, fmt.Errorf("write contraction parquet: %w", err)
		}
	}

	if opts.IncludeEnvelope {
		samples := envelopeRows(res)
		bundle.EnvelopePath = filepath.Join(opts.OutDir, "envelope_samples."+format)
		switch format {
		case "csv":
			if err := writeEnvelopeCSV(bundle.EnvelopePath, samples); err != nil {
				return nil, fmt.Errorf("write envelope csv: %w", err)
			}
		case "parquet":
			if err := writeEnvelopeParquet(bundle.EnvelopePath, samples); err != nil {
				return nil, fmt.Errorf("write envelope parquet: %w", err)
			}
		}
	}

	bundle.NotesPath = filepath.Join(opts.OutDir, "notes.txt")
	if err := os.WriteFile(bundle.NotesPath, []byte(res.Notes+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("write notes.txt: %w", err)
	}

	manifest := Manifest{
		FormatVersion:    ManifestFormatVersion,
		RunID:            res.RunID,
		GeneratedAt:      res.GeneratedAt,
		SessionID:        res.SessionID,
		PatientID:        res.PatientID,
		Fingerprint:      res.Fingerprint,
		ChannelCount:     len(res.Channels),
		ContractionCount: len(contractions),
		GatePassed:       res.Score.Compliance.Passed,
		ResultPath:       filepath.Base(bundle.ResultPath),
		ContractionsPath: filepath.Base(bundle.ContractionsPath),
		NotesPath:        filepath.Base(bundle.NotesPath),
	}
	if bundle.EnvelopePath != "" {
		manifest.EnvelopePath = filepath.Base(bundle.EnvelopePath)
	}
	bundle.ManifestPath = filepath.Join(opts.OutDir, "manifest.json")
	if err := writeJSON(bundle.ManifestPath, manifest); err != nil {
		return nil, fmt.Errorf("write manifest.json: %w", err)
	}

	return bundle, nil
}

type contractionRow struct {
	Channel       string
	Index         int
	OnsetS        float64
	OffsetS       float64
	DurationMS    float64
	PeakAmplitude float64
	MeanAmplitude float64
	MeetsMVC      bool
	MeetsDuration bool
	IsGood        bool
}

func contractionRows(res *SessionResult) []contractionRow {
	var rows []contractionRow
	for _, cr := range res.Channels {
		for i, c := range cr.Analytics.Contractions {
			rows = append(rows, contractionRow{
				Channel:       cr.Analytics.Channel,
				Index:         i,
				OnsetS:        c.OnsetS,
				OffsetS:       c.OffsetS,
				DurationMS:    c.DurationMS,
				PeakAmplitude: c.PeakAmplitude,
				MeanAmplitude: c.MeanAmplitude,
				MeetsMVC:      c.Quality.MeetsMVC,
				MeetsDuration: c.Quality.MeetsDuration,
				IsGood:        c.Quality.IsGood,
			})
		}
	}
	return rows
}

type envelopeRow struct {
	Channel   string
	Index     int
	TimeS     float64
	Amplitude float64
}

func envelopeRows(res *SessionResult) []envelopeRow {
	var rows []envelopeRow
	for _, cr := range res.Channels {
		if cr.Error != "" {
			continue
		}
		for i, v := range cr.envelope.Values {
			rows = append(rows, envelopeRow{
				Channel:   cr.Analytics.Channel,
				Index:     i,
				TimeS:     float64(i) / cr.envelope.SampleRate,
				Amplitude: v,
			})
		}
	}
	return rows
}

func writeContractionCSV(path string, rows []contractionRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"channel", "index", "onset_s", "offset_s", "duration_ms",
		"peak_amplitude", "mean_amplitude", "meets_mvc", "meets_duration", "is_good",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.Channel,
			strconv.Itoa(r.Index),
			formatFloat(r.OnsetS),
			formatFloat(r.OffsetS),
			formatFloat(r.DurationMS),
			formatFloat(r.PeakAmplitude),
			formatFloat(r.MeanAmplitude),
			strconv.FormatBool(r.MeetsMVC),
			strconv.FormatBool(r.MeetsDuration),
			strconv.FormatBool(r.IsGood),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeEnvelopeCSV(path string, rows []envelopeRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"channel", "index", "t_s", "amplitude"}); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.Channel,
			strconv.Itoa(r.Index),
			formatFloat(r.TimeS),
			formatFloat(r.Amplitude),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func ensureOutputDir(path string, overwrite bool) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read output directory: %w", err)
	}
	if len(entries) > 0 && !overwrite {
		return fmt.Errorf("output directory is not empty: %s (set overwrite=true to allow)", path)
	}
	return nil
}
