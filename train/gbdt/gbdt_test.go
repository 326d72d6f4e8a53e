package gbdt

import (
	"math"
	"math/rand"
	"testing"
)

// separableData builds n rows over 4 features where feature 1 cleanly
// separates numClasses classes, with small seeded noise.
func separableData(n, numClasses int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, n)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		class := i % numClasses
		center := (float64(class) + 0.5) / float64(numClasses)
		row := []float64{
			rng.Float64(), // noise
			center + (rng.Float64()-0.5)*0.1/float64(numClasses),
			rng.Float64(), // noise
			rng.Float64(), // noise
		}
		x[i] = row
		y[i] = class
	}
	return x, y
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.NumRounds = 40
	cfg.MinSamplesLeaf = 5
	return cfg
}

func TestFit_LearnsSeparableClasses(t *testing.T) {
	x, y := separableData(180, 3, 42)
	model, err := Fit(x, y, 3, nil, nil, testConfig())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	probs := make([]float64, 3)
	correct := 0
	for i, row := range x {
		model.Predict(row, probs)
		best := 0
		for k := 1; k < 3; k++ {
			if probs[k] > probs[best] {
				best = k
			}
		}
		if best == y[i] {
			correct++
		}
	}
	acc := float64(correct) / float64(len(x))
	if acc < 0.9 {
		t.Errorf("training accuracy %.3f on separable data, want >= 0.9", acc)
	}
}

func TestPredict_ProbabilitiesSumToOne(t *testing.T) {
	x, y := separableData(120, 4, 1)
	model, err := Fit(x, y, 4, nil, nil, testConfig())
	if err != nil {
		t.Fatal(err)
	}

	probs := make([]float64, 4)
	for _, row := range x[:20] {
		model.Predict(row, probs)
		sum := 0.0
		for _, p := range probs {
			if p < 0 || p > 1 {
				t.Fatalf("probability %v outside [0, 1]", p)
			}
			sum += p
		}
		if math.Abs(sum-1.0) > 1e-9 {
			t.Fatalf("probabilities sum to %v, want 1.0", sum)
		}
	}
}

func TestFit_DeterministicForFixedSeed(t *testing.T) {
	x, y := separableData(150, 3, 9)

	m1, err := Fit(x, y, 3, nil, nil, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	m2, err := Fit(x, y, 3, nil, nil, testConfig())
	if err != nil {
		t.Fatal(err)
	}

	if m1.NumRounds() != m2.NumRounds() {
		t.Fatalf("round counts differ: %d != %d", m1.NumRounds(), m2.NumRounds())
	}
	p1 := make([]float64, 3)
	p2 := make([]float64, 3)
	for _, row := range x[:30] {
		m1.Predict(row, p1)
		m2.Predict(row, p2)
		for k := range p1 {
			if p1[k] != p2[k] {
				t.Fatalf("same seed produced different predictions: %v != %v", p1, p2)
			}
		}
	}
}

func TestFit_EarlyStoppingTruncatesModel(t *testing.T) {
	x, y := separableData(150, 3, 4)
	// Validation labels are pure noise: held-out loss deteriorates as the
	// model fits the training data, so patience must trip well before the
	// round budget.
	valX, _ := separableData(60, 3, 5)
	rng := rand.New(rand.NewSource(6))
	valY := make([]int, len(valX))
	for i := range valY {
		valY[i] = rng.Intn(3)
	}

	cfg := testConfig()
	cfg.NumRounds = 200
	model, err := Fit(x, y, 3, valX, valY, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if model.NumRounds() >= cfg.NumRounds {
		t.Errorf("model kept %d rounds, expected early stopping below %d", model.NumRounds(), cfg.NumRounds)
	}
}

func TestFit_OneTreePerClassPerRound(t *testing.T) {
	x, y := separableData(100, 3, 11)
	model, err := Fit(x, y, 3, nil, nil, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	for r, round := range model.Trees {
		if len(round) != 3 {
			t.Fatalf("round %d has %d trees, want one per class", r, len(round))
		}
	}
}

func TestFit_InputValidation(t *testing.T) {
	x, y := separableData(60, 2, 3)

	if _, err := Fit(nil, nil, 2, nil, nil, testConfig()); err == nil {
		t.Error("empty training set should fail")
	}
	if _, err := Fit(x, y[:10], 2, nil, nil, testConfig()); err == nil {
		t.Error("feature/label length mismatch should fail")
	}
	if _, err := Fit(x, y, 1, nil, nil, testConfig()); err == nil {
		t.Error("single-class training should fail")
	}
	bad := append([]int(nil), y...)
	bad[0] = 7
	if _, err := Fit(x, bad, 2, nil, nil, testConfig()); err == nil {
		t.Error("out-of-range label should fail")
	}
}
