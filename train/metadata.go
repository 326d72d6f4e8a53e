package train

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/geoinfer/region-trainer/train/regions"
)

// RegionDetail is the per-region entry of the metadata document.
type RegionDetail struct {
	RegionID    string  `json:"regionId"`
	RegionName  string  `json:"regionName"`
	CountryCode string  `json:"countryCode"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// Metadata is the contract document the serving engine reads alongside the
// model file: the exact feature schema and the class-index-to-region map.
type Metadata struct {
	FeatureCount         int               `json:"featureCount"`
	FeatureNames         []string          `json:"featureNames"`
	ClassIndexToRegionID map[string]string `json:"classIndexToRegionId"`
	Regions              []RegionDetail    `json:"regions"`
}

// BuildMetadata assembles the metadata document for the observed labels in
// class-index order. The feature count is asserted against the feature
// contract: a mismatch is a programming error and fails before anything is
// written. Labels absent from the catalog stay in the class-index map but
// are excluded from the region detail list; the serving engine relies on
// that asymmetry for its region-lookup fallback.
func BuildMetadata(cat *regions.Catalog, labels []string, featureCount int) (*Metadata, error) {
	if featureCount != len(FeatureNames) {
		return nil, fmt.Errorf("feature count mismatch: model has %d inputs, contract names %d features",
			featureCount, len(FeatureNames))
	}

	classIndex := make(map[string]string, len(labels))
	var details []RegionDetail
	for i, label := range labels {
		classIndex[strconv.Itoa(i)] = label
		if def, ok := cat.Lookup(label); ok {
			details = append(details, RegionDetail{
				RegionID:    def.RegionID,
				RegionName:  def.Name,
				CountryCode: def.CountryCode,
				Latitude:    def.Latitude,
				Longitude:   def.Longitude,
			})
		}
	}

	return &Metadata{
		FeatureCount:         featureCount,
		FeatureNames:         append([]string(nil), FeatureNames...),
		ClassIndexToRegionID: classIndex,
		Regions:              details,
	}, nil
}

// WriteMetadata serializes the document as indented JSON.
func WriteMetadata(path string, md *Metadata) error {
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	logrus.Infof("saved metadata to %s", path)
	return nil
}
