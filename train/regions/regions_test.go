package regions

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestDefault_TenRegionsWithUniqueIDs(t *testing.T) {
	cat := Default()
	if cat.Len() != 10 {
		t.Fatalf("default catalog has %d regions, want 10", cat.Len())
	}
	seen := make(map[string]bool)
	for _, d := range cat.All() {
		if seen[d.RegionID] {
			t.Errorf("duplicate region ID %q", d.RegionID)
		}
		seen[d.RegionID] = true
	}
}

func TestDefault_LookupKnownAndUnknown(t *testing.T) {
	cat := Default()
	d, ok := cat.Lookup("eu-ber")
	if !ok {
		t.Fatal("eu-ber missing from default catalog")
	}
	if d.Name != "Berlin Metro" || d.CountryCode != "DE" {
		t.Errorf("eu-ber = %+v, want Berlin Metro / DE", d)
	}
	if _, ok := cat.Lookup("xx-zzz"); ok {
		t.Error("unknown region ID should not resolve")
	}
}

func TestAll_SortedByRegionID(t *testing.T) {
	cat := Default()
	all := cat.All()
	if !sort.SliceIsSorted(all, func(i, j int) bool { return all[i].RegionID < all[j].RegionID }) {
		t.Error("All() is not sorted by region ID")
	}
}

func TestNew_RejectsInvalidDefinitions(t *testing.T) {
	cases := []struct {
		name string
		defs []Definition
	}{
		{"empty catalog", nil},
		{"blank id", []Definition{{Name: "Nowhere"}}},
		{"duplicate id", []Definition{
			{RegionID: "eu-ams", Name: "A", Latitude: 1, Longitude: 1},
			{RegionID: "eu-ams", Name: "B", Latitude: 2, Longitude: 2},
		}},
		{"latitude out of range", []Definition{{RegionID: "r", Name: "R", Latitude: 91}}},
		{"longitude out of range", []Definition{{RegionID: "r", Name: "R", Longitude: -181}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.defs); err == nil {
				t.Errorf("New(%s) succeeded, want error", tc.name)
			}
		})
	}
}

func TestLoad_YAMLOverride(t *testing.T) {
	content := `regions:
  - region_id: eu-ber
    name: Berlin Metro
    country_code: DE
    latitude: 52.52
    longitude: 13.405
  - region_id: ap-tok
    name: Tokyo Metro
    country_code: JP
    latitude: 35.6762
    longitude: 139.6503
`
	path := filepath.Join(t.TempDir(), "regions.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cat.Len() != 2 {
		t.Fatalf("loaded %d regions, want 2", cat.Len())
	}
	if d, ok := cat.Lookup("ap-tok"); !ok || d.CountryCode != "JP" {
		t.Errorf("ap-tok = %+v, ok=%v", d, ok)
	}
}

func TestLoad_MissingFileAndBadYAML(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load of missing file should fail")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("regions: [not: valid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load of malformed YAML should fail")
	}
}
