package train

import (
	"errors"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/geoinfer/region-trainer/train/regions"
)

// MinTrainingSamples is the minimum number of labeled rows required to
// proceed to training.
const MinTrainingSamples = 50

// ErrInsufficientData reports that too few usable records survived label
// filtering to train on. It aborts the run without producing artifacts but
// is an expected operational outcome, not a crash.
var ErrInsufficientData = errors.New("not enough labeled samples for training")

// DatasetSummary reports assembly statistics for operator review.
type DatasetSummary struct {
	Samples     int
	Skipped     int
	ClassCounts map[string]int // region ID → labeled sample count
}

// Dataset is the assembled feature matrix, encoded labels, and label
// encoding for one training run. The assembler owns X and Y exclusively;
// nothing mutates them after assembly.
type Dataset struct {
	X       [][]float64
	Y       []int
	Labels  []string // distinct observed region IDs, sorted; index = class index
	Summary DatasetSummary

	indexByLabel map[string]int
}

// NumClasses returns the number of distinct observed labels.
func (d *Dataset) NumClasses() int {
	return len(d.Labels)
}

// Label returns the region ID for a class index.
func (d *Dataset) Label(index int) (string, bool) {
	if index < 0 || index >= len(d.Labels) {
		return "", false
	}
	return d.Labels[index], true
}

// ClassIndex returns the class index for a region ID.
func (d *Dataset) ClassIndex(label string) (int, bool) {
	idx, ok := d.indexByLabel[label]
	return idx, ok
}

// AssembleDataset runs one pass over the corpus: derive a label per record,
// build the feature vector only for labeled records, then fit the label
// encoding over the distinct labels actually observed (sorted
// lexicographically). Returns ErrInsufficientData when fewer than
// MinTrainingSamples rows survive filtering.
func AssembleDataset(cat *regions.Catalog, records []*VisitRecord, clock func() time.Time) (*Dataset, error) {
	var (
		x         [][]float64
		rawLabels []string
		skipped   int
	)
	counts := make(map[string]int)

	for _, rec := range records {
		label, ok := ExtractLabel(cat, rec)
		if !ok {
			skipped++
			continue
		}
		// Feature work only for records that will actually train.
		x = append(x, BuildFeatureVector(rec, clock))
		rawLabels = append(rawLabels, label)
		counts[label]++
	}

	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	indexByLabel := make(map[string]int, len(labels))
	for i, label := range labels {
		indexByLabel[label] = i
	}

	y := make([]int, len(rawLabels))
	for i, label := range rawLabels {
		y[i] = indexByLabel[label]
	}

	ds := &Dataset{
		X:      x,
		Y:      y,
		Labels: labels,
		Summary: DatasetSummary{
			Samples:     len(x),
			Skipped:     skipped,
			ClassCounts: counts,
		},
		indexByLabel: indexByLabel,
	}
	ds.logSummary()

	if len(x) < MinTrainingSamples {
		return nil, ErrInsufficientData
	}
	return ds, nil
}

// logSummary emits the assembly report. Classes are logged in sorted order
// so runs over the same corpus produce diffable logs.
func (d *Dataset) logSummary() {
	logrus.Infof("assembled %s samples, skipped %s unlabeled records, %d classes",
		humanize.Comma(int64(d.Summary.Samples)), humanize.Comma(int64(d.Summary.Skipped)), len(d.Labels))
	for _, label := range d.Labels {
		logrus.Infof("  %-8s %s samples", label, humanize.Comma(int64(d.Summary.ClassCounts[label])))
	}
}
