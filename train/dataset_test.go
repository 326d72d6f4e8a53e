package train

import (
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/geoinfer/region-trainer/train/regions"
)

// syntheticRecords fabricates n labelable records spread across the given
// region IDs, with a distinguishing timezone signal per region.
func syntheticRecords(t *testing.T, cat *regions.Catalog, regionIDs []string, n int) []*VisitRecord {
	t.Helper()
	var records []*VisitRecord
	for i := 0; i < n; i++ {
		id := regionIDs[i%len(regionIDs)]
		def, ok := cat.Lookup(id)
		if !ok {
			t.Fatalf("region %s not in catalog", id)
		}
		lat := def.Latitude + float64(i%7)*0.01
		lon := def.Longitude + float64(i%5)*0.01
		records = append(records, &VisitRecord{
			Latitude:              &lat,
			Longitude:             &lon,
			TimezoneOffsetMinutes: def.Longitude * 4, // rough solar offset, distinct per region
			Timestamp:             fmt.Sprintf("2025-06-%02dT%02d:00:00Z", 1+i%28, i%24),
			Locale:                "en-US",
		})
	}
	return records
}

func TestAssembleDataset_LabelsEncodedSorted(t *testing.T) {
	cat := regions.Default()
	records := syntheticRecords(t, cat, []string{"us-nyc", "eu-ber", "ap-tok"}, 90)

	ds, err := AssembleDataset(cat, records, fixedClock)
	if err != nil {
		t.Fatalf("AssembleDataset: %v", err)
	}

	want := []string{"ap-tok", "eu-ber", "us-nyc"} // lexicographic
	if len(ds.Labels) != len(want) {
		t.Fatalf("labels = %v, want %v", ds.Labels, want)
	}
	for i, label := range want {
		if ds.Labels[i] != label {
			t.Errorf("Labels[%d] = %q, want %q", i, ds.Labels[i], label)
		}
	}
	if !sort.StringsAreSorted(ds.Labels) {
		t.Error("label encoding must assign indices in sorted label order")
	}
}

func TestAssembleDataset_EncodingRoundTrip(t *testing.T) {
	cat := regions.Default()
	records := syntheticRecords(t, cat, []string{"eu-par", "us-chi"}, 80)

	ds, err := AssembleDataset(cat, records, fixedClock)
	if err != nil {
		t.Fatal(err)
	}
	for i, label := range ds.Labels {
		idx, ok := ds.ClassIndex(label)
		if !ok || idx != i {
			t.Errorf("ClassIndex(%q) = %d, %v; want %d", label, idx, ok, i)
		}
		back, ok := ds.Label(i)
		if !ok || back != label {
			t.Errorf("Label(%d) = %q, %v; want %q", i, back, ok, label)
		}
	}
	if _, ok := ds.Label(-1); ok {
		t.Error("Label(-1) should not resolve")
	}
	if _, ok := ds.ClassIndex("xx-unk"); ok {
		t.Error("unknown label should not resolve to an index")
	}
}

func TestAssembleDataset_ParallelMatrixAndLabels(t *testing.T) {
	cat := regions.Default()
	records := syntheticRecords(t, cat, []string{"eu-ams", "eu-lon"}, 60)
	// Unlabelable noise interleaved with the good records.
	records = append(records, &VisitRecord{}, &VisitRecord{GeoIPCity: "Ulaanbaatar"})

	ds, err := AssembleDataset(cat, records, fixedClock)
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.X) != len(ds.Y) {
		t.Fatalf("matrix/label length mismatch: %d != %d", len(ds.X), len(ds.Y))
	}
	if ds.Summary.Samples != 60 || ds.Summary.Skipped != 2 {
		t.Errorf("summary = %+v, want 60 samples / 2 skipped", ds.Summary)
	}
	for i, row := range ds.X {
		if len(row) != FeatureCount {
			t.Fatalf("row %d has %d features, want %d", i, len(row), FeatureCount)
		}
		if ds.Y[i] < 0 || ds.Y[i] >= ds.NumClasses() {
			t.Fatalf("row %d label index %d outside [0, %d)", i, ds.Y[i], ds.NumClasses())
		}
	}

	total := 0
	for _, c := range ds.Summary.ClassCounts {
		total += c
	}
	if total != ds.Summary.Samples {
		t.Errorf("class counts sum to %d, want %d", total, ds.Summary.Samples)
	}
}

func TestAssembleDataset_InsufficientSamples(t *testing.T) {
	cat := regions.Default()
	records := syntheticRecords(t, cat, []string{"eu-ber"}, MinTrainingSamples-1)

	ds, err := AssembleDataset(cat, records, fixedClock)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
	if ds != nil {
		t.Error("no dataset should be returned on insufficient data")
	}
}

func TestAssembleDataset_ExactlyMinimumPasses(t *testing.T) {
	cat := regions.Default()
	records := syntheticRecords(t, cat, []string{"eu-ber", "ap-tok"}, MinTrainingSamples)

	ds, err := AssembleDataset(cat, records, fixedClock)
	if err != nil {
		t.Fatalf("AssembleDataset at the threshold: %v", err)
	}
	if ds.Summary.Samples != MinTrainingSamples {
		t.Errorf("samples = %d, want %d", ds.Summary.Samples, MinTrainingSamples)
	}
}
