// Package regions defines the immutable geographic region catalog.
//
// The catalog is the universe of valid classifier outputs: every label the
// pipeline produces is a region ID from this table, and the metadata artifact
// describes classes in terms of these definitions. The catalog is constructed
// once at startup and passed explicitly to every component that needs it.
package regions

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Definition describes one geographic region (typically a metro area).
type Definition struct {
	RegionID    string  `yaml:"region_id"`
	Name        string  `yaml:"name"`
	CountryCode string  `yaml:"country_code"`
	Latitude    float64 `yaml:"latitude"`
	Longitude   float64 `yaml:"longitude"`
}

// Catalog is a read-only lookup of region definitions keyed by region ID.
type Catalog struct {
	byID   map[string]Definition
	sorted []Definition // sorted by RegionID, fixed iteration order
}

// New builds a Catalog from definitions. Duplicate or blank region IDs and
// out-of-range centroid coordinates are rejected.
func New(defs []Definition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("region catalog is empty")
	}
	byID := make(map[string]Definition, len(defs))
	for i, d := range defs {
		if d.RegionID == "" {
			return nil, fmt.Errorf("region %d: region_id is required", i)
		}
		if _, dup := byID[d.RegionID]; dup {
			return nil, fmt.Errorf("region %q: duplicate region_id", d.RegionID)
		}
		if d.Latitude < -90 || d.Latitude > 90 {
			return nil, fmt.Errorf("region %q: latitude %v outside [-90, 90]", d.RegionID, d.Latitude)
		}
		if d.Longitude < -180 || d.Longitude > 180 {
			return nil, fmt.Errorf("region %q: longitude %v outside [-180, 180]", d.RegionID, d.Longitude)
		}
		byID[d.RegionID] = d
	}

	sorted := make([]Definition, 0, len(byID))
	for _, d := range byID {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RegionID < sorted[j].RegionID })

	return &Catalog{byID: byID, sorted: sorted}, nil
}

// Lookup returns the definition for a region ID, if present.
func (c *Catalog) Lookup(id string) (Definition, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// All returns every definition sorted by region ID. Callers must not mutate
// the returned slice.
func (c *Catalog) All() []Definition {
	return c.sorted
}

// Len returns the number of regions in the catalog.
func (c *Catalog) Len() int {
	return len(c.sorted)
}

// catalogFile is the YAML layout of an external catalog override.
type catalogFile struct {
	Regions []Definition `yaml:"regions"`
}

// Load reads a region catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read region catalog: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse region catalog %s: %w", path, err)
	}
	cat, err := New(file.Regions)
	if err != nil {
		return nil, fmt.Errorf("region catalog %s: %w", path, err)
	}
	return cat, nil
}

// Default returns the built-in catalog used when no override file is given.
// The set and centroids must stay in sync with the serving engine's
// Regions.json deployment artifact.
func Default() *Catalog {
	cat, err := New([]Definition{
		{RegionID: "eu-ams", Name: "Amsterdam Metro", CountryCode: "NL", Latitude: 52.3676, Longitude: 4.9041},
		{RegionID: "eu-bru", Name: "Brussels Metro", CountryCode: "BE", Latitude: 50.8503, Longitude: 4.3517},
		{RegionID: "eu-fra", Name: "Frankfurt Metro", CountryCode: "DE", Latitude: 50.1109, Longitude: 8.6821},
		{RegionID: "eu-ber", Name: "Berlin Metro", CountryCode: "DE", Latitude: 52.5200, Longitude: 13.4050},
		{RegionID: "eu-par", Name: "Paris Metro", CountryCode: "FR", Latitude: 48.8566, Longitude: 2.3522},
		{RegionID: "eu-lon", Name: "London Metro", CountryCode: "GB", Latitude: 51.5074, Longitude: -0.1278},
		{RegionID: "us-nyc", Name: "New York Metro", CountryCode: "US", Latitude: 40.7128, Longitude: -74.0060},
		{RegionID: "us-lax", Name: "Los Angeles Metro", CountryCode: "US", Latitude: 34.0522, Longitude: -118.2437},
		{RegionID: "us-chi", Name: "Chicago Metro", CountryCode: "US", Latitude: 41.8781, Longitude: -87.6298},
		{RegionID: "ap-tok", Name: "Tokyo Metro", CountryCode: "JP", Latitude: 35.6762, Longitude: 139.6503},
	})
	if err != nil {
		// The built-in table is validated by tests; reaching here is a bug.
		panic(err)
	}
	return cat
}
