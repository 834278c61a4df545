package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	emg "github.com/ggustin93/emg-c3d-analyzer-sub015"
	"github.com/ggustin93/emg-c3d-analyzer-sub015/pipeline"
	"github.com/ggustin93/emg-c3d-analyzer-sub015/scoring"
)

func main() {
	var (
		sessionPath = flag.String("session", "", "Path to input session JSON bundle")
		outDir      = flag.String("out", "", "Output directory for the artifact bundle")
		format      = flag.String("format", "parquet", "Contraction/envelope table format: parquet|csv")
		envelope    = flag.Bool("envelope", true, "Include per-sample envelope table in the bundle")
		mvcPct      = flag.Float64("mvc-pct", 0, "Override MVC target percentage (0 keeps the configuration value)")
		overwrite   = flag.Bool("overwrite", true, "Allow writing into non-empty output directories")
		verbose     = flag.Bool("v", false, "Verbose logging")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s --session session.json --out outdir [--format parquet|csv] [--mvc-pct 75]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if strings.TrimSpace(*sessionPath) == "" || strings.TrimSpace(*outDir) == "" {
		flag.Usage()
		os.Exit(2)
	}

	logger := zap.NewNop()
	if *verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
	}

	data, err := os.ReadFile(*sessionPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read session bundle: %v\n", err)
		os.Exit(1)
	}
	var in pipeline.SessionInput
	if err := json.Unmarshal(data, &in); err != nil {
		fmt.Fprintf(os.Stderr, "parse session bundle: %v\n", err)
		os.Exit(1)
	}

	store := scoring.NewMemoryStore()
	cfg := scoring.Default()
	if *mvcPct > 0 {
		cfg.MVCTargetPct = *mvcPct
		cfg.ID += fmt.Sprintf("-mvc%.0f", *mvcPct)
	}
	if err := store.PutConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}

	result, err := pipeline.Run(context.Background(), in, pipeline.Options{
		OutDir:          *outDir,
		Format:          *format,
		Overwrite:       *overwrite,
		IncludeEnvelope: *envelope,
		Filter:          emg.DefaultFilterConfig(),
		Spectral:        emg.DefaultSpectralConfig(),
		Segment:         emg.DefaultSegmentConfig(),
		Resolver:        scoring.NewResolver(store),
		Logger:          logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "emg_analyze failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("emg_analyze complete\n")
	fmt.Printf("Session:           %s\n", result.SessionID)
	fmt.Printf("Gate passed:       %t\n", result.Score.Compliance.Passed)
	if result.Score.Performance != nil {
		fmt.Printf("Overall score:     %.0f/100\n", result.Score.Performance.OverallScore)
	} else {
		fmt.Printf("Overall score:     not computable (protocol gate)\n")
	}
	if result.Artifacts != nil {
		fmt.Printf("Output dir:        %s\n", result.Artifacts.OutputDir)
		fmt.Printf("manifest.json:     %s\n", result.Artifacts.ManifestPath)
		fmt.Printf("result.json:       %s\n", result.Artifacts.ResultPath)
		fmt.Printf("contraction table: %s\n", result.Artifacts.ContractionsPath)
		if result.Artifacts.EnvelopePath != "" {
			fmt.Printf("envelope table:    %s\n", result.Artifacts.EnvelopePath)
		}
		fmt.Printf("notes:             %s\n", result.Artifacts.NotesPath)
	}
}
