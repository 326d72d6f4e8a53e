package train

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/geoinfer/region-trainer/train/gbdt"
)

// TrainerConfig is the run-level training surface exposed by the CLI.
type TrainerConfig struct {
	TestFraction float64
	NumRounds    int
	Seed         int64
}

// EvaluationReport summarizes held-out accuracy after a training run. The
// numbers are diagnostic: training succeeds regardless, and an operator
// judges fitness from the logs.
type EvaluationReport struct {
	Top1        float64
	Top3        float64
	TestSamples int
	KeptRounds  int
}

// TrainModel fits a multiclass boosted ensemble on the assembled dataset
// using a seeded stratified split, then evaluates top-1/top-3 accuracy on
// the held-out partition.
func TrainModel(ds *Dataset, cfg TrainerConfig) (*gbdt.Model, *EvaluationReport, error) {
	if cfg.TestFraction <= 0 || cfg.TestFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction %v outside (0, 1)", cfg.TestFraction)
	}
	if cfg.NumRounds < 1 {
		return nil, nil, fmt.Errorf("boosting round count %d must be positive", cfg.NumRounds)
	}

	trainIdx, testIdx := StratifiedSplit(ds.Y, ds.NumClasses(), cfg.TestFraction, cfg.Seed)
	trainX, trainY := gather(ds.X, trainIdx), gatherInts(ds.Y, trainIdx)
	testX, testY := gather(ds.X, testIdx), gatherInts(ds.Y, testIdx)

	logrus.Infof("training on %d samples, evaluating on %d (%d classes)",
		len(trainX), len(testX), ds.NumClasses())

	boostCfg := gbdt.DefaultConfig()
	boostCfg.NumRounds = cfg.NumRounds
	boostCfg.Seed = cfg.Seed

	model, err := gbdt.Fit(trainX, trainY, ds.NumClasses(), testX, testY, boostCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("fit ensemble: %w", err)
	}

	report := evaluate(model, testX, testY)
	report.KeptRounds = model.NumRounds()
	logrus.Infof("top-1 accuracy: %.4f", report.Top1)
	logrus.Infof("top-3 accuracy: %.4f", report.Top3)
	logrus.Infof("kept %d boosting rounds", report.KeptRounds)
	return model, report, nil
}

// evaluate computes top-1 and top-k accuracy (k = min(3, numClasses)) on a
// held-out partition.
func evaluate(model *gbdt.Model, testX [][]float64, testY []int) *EvaluationReport {
	k := 3
	if model.NumClasses < k {
		k = model.NumClasses
	}

	top1Hits := make([]float64, len(testX))
	topKHits := make([]float64, len(testX))
	probs := make([]float64, model.NumClasses)

	for i, x := range testX {
		model.Predict(x, probs)
		ranked := rankClasses(probs)
		if ranked[0] == testY[i] {
			top1Hits[i] = 1
		}
		for _, c := range ranked[:k] {
			if c == testY[i] {
				topKHits[i] = 1
				break
			}
		}
	}

	report := &EvaluationReport{TestSamples: len(testX)}
	if len(testX) > 0 {
		report.Top1 = stat.Mean(top1Hits, nil)
		report.Top3 = stat.Mean(topKHits, nil)
	}
	return report
}

// rankClasses returns class indices ordered by descending probability, ties
// broken by class index for determinism.
func rankClasses(probs []float64) []int {
	ranked := make([]int, len(probs))
	for i := range ranked {
		ranked[i] = i
	}
	sort.SliceStable(ranked, func(i, j int) bool { return probs[ranked[i]] > probs[ranked[j]] })
	return ranked
}
