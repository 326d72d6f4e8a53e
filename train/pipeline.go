package train

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/geoinfer/region-trainer/train/onnx"
	"github.com/geoinfer/region-trainer/train/regions"
)

// Output artifact filenames, fixed by the serving engine's loader.
const (
	ModelFileName    = "inferred_region.onnx"
	MetadataFileName = "inferred_region-metadata.json"
)

// Config is the full configuration surface of one training run.
type Config struct {
	InputPath    string
	OutputDir    string
	RegionsPath  string // optional catalog override; empty = built-in catalog
	TestFraction float64
	NumRounds    int
	Seed         int64
	Clock        func() time.Time // nil = time.Now
}

// Run executes the end-to-end pipeline: load corpus, assemble the dataset,
// train, export the ONNX model, write the metadata contract. Any error
// aborts the run; ErrInsufficientData is returned unwrapped so callers can
// report it distinctly.
func Run(cfg Config) error {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	cat := regions.Default()
	if cfg.RegionsPath != "" {
		var err error
		if cat, err = regions.Load(cfg.RegionsPath); err != nil {
			return err
		}
	}
	logrus.Infof("region catalog: %d regions", cat.Len())

	records, err := LoadRecords(cfg.InputPath)
	if err != nil {
		return err
	}

	ds, err := AssembleDataset(cat, records, clock)
	if err != nil {
		return err
	}

	model, _, err := TrainModel(ds, TrainerConfig{
		TestFraction: cfg.TestFraction,
		NumRounds:    cfg.NumRounds,
		Seed:         cfg.Seed,
	})
	if err != nil {
		return err
	}

	// Both artifacts are fully serialized in memory before either file is
	// written, so a conversion failure leaves nothing partial behind.
	modelBytes, err := onnx.Export(model)
	if err != nil {
		return fmt.Errorf("export model: %w", err)
	}
	md, err := BuildMetadata(cat, ds.Labels, model.NumFeatures)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	modelPath := filepath.Join(cfg.OutputDir, ModelFileName)
	if err := os.WriteFile(modelPath, modelBytes, 0o644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	logrus.Infof("saved ONNX model to %s", modelPath)

	if err := WriteMetadata(filepath.Join(cfg.OutputDir, MetadataFileName), md); err != nil {
		return err
	}

	logrus.Info("training complete")
	return nil
}
