// Package gbdt trains multiclass gradient-boosted regression tree ensembles
// with a softmax objective. It exists because the Go ecosystem ships GBDT
// inference but not training; the implementation follows the standard
// second-order boosting formulation (leaf-wise trees, leaf budget,
// feature/row subsampling, early stopping on held-out log-loss).
package gbdt

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// Config holds the boosting hyperparameters.
type Config struct {
	NumRounds           int     // boosting rounds (upper bound when early stopping fires)
	NumLeaves           int     // leaf budget per tree
	LearningRate        float64 // shrinkage applied to every leaf value
	Lambda              float64 // L2 regularization on leaf values
	FeatureFraction     float64 // fraction of features sampled per tree
	BaggingFraction     float64 // fraction of rows sampled per bagging period
	BaggingFreq         int     // rounds between row resamples; 0 disables bagging
	MinSamplesLeaf      int     // minimum rows per leaf
	EarlyStoppingRounds int     // patience on held-out log-loss; 0 disables
	Seed                int64
}

// DefaultConfig mirrors the production training parameters.
func DefaultConfig() Config {
	return Config{
		NumRounds:           100,
		NumLeaves:           31,
		LearningRate:        0.05,
		Lambda:              1.0,
		FeatureFraction:     0.8,
		BaggingFraction:     0.8,
		BaggingFreq:         5,
		MinSamplesLeaf:      20,
		EarlyStoppingRounds: 10,
		Seed:                42,
	}
}

// Model is a trained multiclass ensemble: one tree per class per kept round.
type Model struct {
	NumClasses  int
	NumFeatures int
	Trees       [][]*Tree // [round][class]
}

// NumRounds returns the number of boosting rounds kept in the model.
func (m *Model) NumRounds() int {
	return len(m.Trees)
}

// RawScores accumulates the ensemble's additive scores for one vector into
// out, which must have length NumClasses.
func (m *Model) RawScores(x []float64, out []float64) {
	for i := range out {
		out[i] = 0
	}
	for _, round := range m.Trees {
		for k, tree := range round {
			out[k] += tree.Predict(x)
		}
	}
}

// Predict writes per-class probabilities for one vector into out, which
// must have length NumClasses.
func (m *Model) Predict(x []float64, out []float64) {
	m.RawScores(x, out)
	softmax(out)
}

// softmax converts raw scores to probabilities in place.
func softmax(v []float64) {
	max := floats.Max(v)
	sum := 0.0
	for i, s := range v {
		e := math.Exp(s - max)
		v[i] = e
		sum += e
	}
	floats.Scale(1/sum, v)
}

// Fit trains an ensemble on (x, y) with numClasses classes. When a
// validation set is supplied and EarlyStoppingRounds > 0, training stops
// once held-out log-loss fails to improve for that many rounds, and the
// model is truncated to the best round. Deterministic for a fixed config.
func Fit(x [][]float64, y []int, numClasses int, valX [][]float64, valY []int, cfg Config) (*Model, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("empty training set")
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("feature/label length mismatch: %d != %d", len(x), len(y))
	}
	if numClasses < 2 {
		return nil, fmt.Errorf("need at least 2 classes, got %d", numClasses)
	}
	numFeatures := len(x[0])
	for i, c := range y {
		if c < 0 || c >= numClasses {
			return nil, fmt.Errorf("label %d out of range [0, %d) at row %d", c, numClasses, i)
		}
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	n := len(x)

	// Raw scores per row, updated additively each round.
	scores := newMatrix(n, numClasses)
	valScores := newMatrix(len(valX), numClasses)

	grad := make([]float64, n)
	hess := make([]float64, n)
	probs := make([]float64, numClasses)

	model := &Model{NumClasses: numClasses, NumFeatures: numFeatures}

	bagged := allRows(n)
	bestLoss := math.Inf(1)
	bestRound := -1

	for round := 0; round < cfg.NumRounds; round++ {
		if cfg.BaggingFreq > 0 && cfg.BaggingFraction < 1 && round%cfg.BaggingFreq == 0 {
			bagged = sampleRows(rng, n, cfg.BaggingFraction)
		}
		features := sampleFeatures(rng, numFeatures, cfg.FeatureFraction)

		roundTrees := make([]*Tree, numClasses)
		for k := 0; k < numClasses; k++ {
			for i := 0; i < n; i++ {
				copy(probs, scores[i])
				softmax(probs)
				p := probs[k]
				target := 0.0
				if y[i] == k {
					target = 1.0
				}
				grad[i] = p - target
				hess[i] = math.Max(p*(1-p), 1e-16)
			}
			roundTrees[k] = growTree(x, grad, hess, bagged, features, cfg)
		}
		model.Trees = append(model.Trees, roundTrees)

		for i := range x {
			for k, tree := range roundTrees {
				scores[i][k] += tree.Predict(x[i])
			}
		}
		for i := range valX {
			for k, tree := range roundTrees {
				valScores[i][k] += tree.Predict(valX[i])
			}
		}

		if len(valX) > 0 {
			loss := logLoss(valScores, valY)
			if loss < bestLoss {
				bestLoss = loss
				bestRound = round
			}
			if (round+1)%10 == 0 {
				logrus.Debugf("round %d: validation logloss %.6f (best %.6f at round %d)",
					round+1, loss, bestLoss, bestRound+1)
			}
			if cfg.EarlyStoppingRounds > 0 && round-bestRound >= cfg.EarlyStoppingRounds {
				model.Trees = model.Trees[:bestRound+1]
				logrus.Infof("early stopping at round %d, keeping best round %d (logloss %.6f)",
					round+1, bestRound+1, bestLoss)
				break
			}
		}
	}

	return model, nil
}

// logLoss is the mean multiclass negative log-likelihood of raw scores.
func logLoss(scores [][]float64, y []int) float64 {
	if len(scores) == 0 {
		return 0
	}
	probs := make([]float64, len(scores[0]))
	total := 0.0
	for i, row := range scores {
		copy(probs, row)
		softmax(probs)
		p := math.Max(probs[y[i]], 1e-15)
		total -= math.Log(p)
	}
	return total / float64(len(scores))
}

func newMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}

// sampleRows draws a sorted fraction of row indices without replacement.
func sampleRows(rng *rand.Rand, n int, fraction float64) []int {
	k := int(math.Ceil(float64(n) * fraction))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	rows := rng.Perm(n)[:k]
	sort.Ints(rows)
	return rows
}

// sampleFeatures draws a sorted fraction of feature indices without
// replacement, always keeping at least one.
func sampleFeatures(rng *rand.Rand, d int, fraction float64) []int {
	k := int(math.Ceil(float64(d) * fraction))
	if k < 1 {
		k = 1
	}
	if k > d {
		k = d
	}
	features := rng.Perm(d)[:k]
	sort.Ints(features)
	return features
}
