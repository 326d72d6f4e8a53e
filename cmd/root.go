package cmd

import (
	"errors"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/geoinfer/region-trainer/train"
)

var (
	// CLI flags for the training pipeline
	inputPath    string  // NDJSON visit corpus from the export service
	outputDir    string  // Directory receiving the model and metadata artifacts
	regionsPath  string  // Optional YAML region catalog override
	testFraction float64 // Held-out evaluation split fraction
	numRounds    int     // Boosting round budget
	seed         int64   // Seed for the stratified split and subsampling
	logLevel     string  // Log verbosity level
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "region-trainer",
	Short: "Trains the inferred-region classifier and exports its ONNX artifact",
}

// trainCmd runs the training pipeline using parameters from CLI flags
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the region model from an NDJSON visit export",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if testFraction <= 0 || testFraction >= 1 {
			logrus.Fatalf("Test fraction %v must be inside (0, 1). Exiting.", testFraction)
		}
		if numRounds < 1 {
			logrus.Fatalf("Boosting round count %d must be positive. Exiting.", numRounds)
		}

		err = train.Run(train.Config{
			InputPath:    inputPath,
			OutputDir:    outputDir,
			RegionsPath:  regionsPath,
			TestFraction: testFraction,
			NumRounds:    numRounds,
			Seed:         seed,
		})
		if errors.Is(err, train.ErrInsufficientData) {
			logrus.Fatalf("Not enough samples for training: %v", err)
		}
		if err != nil {
			logrus.Fatalf("Training pipeline failed: %v", err)
		}
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	trainCmd.Flags().StringVar(&inputPath, "input", "", "Input NDJSON file from the visit export service")
	trainCmd.Flags().StringVar(&outputDir, "output", "", "Output directory for the ONNX model and metadata")
	trainCmd.Flags().StringVar(&regionsPath, "regions", "", "Optional YAML region catalog override")
	trainCmd.Flags().Float64Var(&testFraction, "test-size", 0.2, "Held-out test set fraction")
	trainCmd.Flags().IntVar(&numRounds, "num-rounds", 100, "Gradient boosting rounds")
	trainCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for the train/test split and subsampling")
	trainCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	_ = trainCmd.MarkFlagRequired("input")
	_ = trainCmd.MarkFlagRequired("output")

	// Attach `train` as a subcommand to `root`
	rootCmd.AddCommand(trainCmd)
}
