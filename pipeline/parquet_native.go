package pipeline

import (
	"os"

	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type contractionParquetRow struct {
	Channel       string  `parquet:"name=channel, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Index         int64   `parquet:"name=index, type=INT64"`
	OnsetS        float64 `parquet:"name=onset_s, type=DOUBLE"`
	OffsetS       float64 `parquet:"name=offset_s, type=DOUBLE"`
	DurationMS    float64 `parquet:"name=duration_ms, type=DOUBLE"`
	PeakAmplitude float64 `parquet:"name=peak_amplitude, type=DOUBLE"`
	MeanAmplitude float64 `parquet:"name=mean_amplitude, type=DOUBLE"`
	MeetsMVC      bool    `parquet:"name=meets_mvc, type=BOOLEAN"`
	MeetsDuration bool    `parquet:"name=meets_duration, type=BOOLEAN"`
	IsGood        bool    `parquet:"name=is_good, type=BOOLEAN"`
}

type envelopeParquetRow struct {
	Channel   string  `parquet:"name=channel, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Index     int64   `parquet:"name=index, type=INT64"`
	TimeS     float64 `parquet:"name=t_s, type=DOUBLE"`
	Amplitude float64 `parquet:"name=amplitude, type=DOUBLE"`
}

func writeContractionParquet(path string, rows []contractionRow) error {
	fw := parquetbuffer.NewBufferFile()
	pw, err := writer.NewParquetWriter(fw, new(contractionParquetRow), 4)
	if err != nil {
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, r := range rows {
		row := contractionParquetRow{
			Channel:       r.Channel,
			Index:         int64(r.Index),
			OnsetS:        r.OnsetS,
			OffsetS:       r.OffsetS,
			DurationMS:    r.DurationMS,
			PeakAmplitude: r.PeakAmplitude,
			MeanAmplitude: r.MeanAmplitude,
			MeetsMVC:      r.MeetsMVC,
			MeetsDuration: r.MeetsDuration,
			IsGood:        r.IsGood,
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return err
		}
	}
	if err := pw.WriteStop(); err != nil {
		return err
	}
	if err := fw.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, fw.Bytes(), 0o644)
}

func writeEnvelopeParquet(path string, rows []envelopeRow) error {
	fw := parquetbuffer.NewBufferFile()
	pw, err := writer.NewParquetWriter(fw, new(envelopeParquetRow), 4)
	if err != nil {
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, r := range rows {
		row := envelopeParquetRow{
			Channel:   r.Channel,
			Index:     int64(r.Index),
			TimeS:     r.TimeS,
			Amplitude: r.Amplitude,
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return err
		}
	}
	if err := pw.WriteStop(); err != nil {
		return err
	}
	if err := fw.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, fw.Bytes(), 0o644)
}
