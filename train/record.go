package train

import (
	"bufio"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var jsonIter = jsoniter.ConfigCompatibleWithStandardLibrary

// ASNCorrelation carries ASN timing-correlation signals for one visit.
type ASNCorrelation struct {
	AverageDeviation  float64 `json:"average_deviation"`
	PatternSimilarity float64 `json:"pattern_similarity"`
	MatchingASNs      float64 `json:"matching_asns"`
	VisitCount        int     `json:"visit_count"`
}

// VPNDetection carries the VPN/proxy heuristic verdict for one visit.
type VPNDetection struct {
	IsLikelyVPN    bool   `json:"is_likely_vpn"`
	SuspicionLevel string `json:"suspicion_level"`
}

// VisitRecord is one logged network access event from the NDJSON export.
// Every field is optional; the feature and label contracts tolerate total
// absence of any signal. Coordinates are pointers so that a present zero
// value is distinguishable from an absent field.
type VisitRecord struct {
	Latitude              *float64        `json:"latitude"`
	Longitude             *float64        `json:"longitude"`
	GeoIPCity             string          `json:"geoip_city"`
	ASNInferredCity       string          `json:"asn_inferred_city"`
	ASNCorrelation        *ASNCorrelation `json:"asn_correlation"`
	VPNDetection          *VPNDetection   `json:"vpn_detection"`
	TimezoneOffsetMinutes float64         `json:"timezone_offset_minutes"`
	Timestamp             string          `json:"timestamp"`
	Locale                string          `json:"locale"`
}

// LoadRecords reads an NDJSON corpus, one VisitRecord per line. Malformed
// lines are logged and skipped; they are never fatal. Blank lines are
// ignored silently.
func LoadRecords(path string) ([]*VisitRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	var records []*VisitRecord
	malformed := 0

	scanner := bufio.NewScanner(f)
	// Visit records with full signal payloads can exceed the default token
	// size on dense exports.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		rec := &VisitRecord{}
		if err := jsonIter.Unmarshal(line, rec); err != nil {
			malformed++
			logrus.Warnf("skipping invalid JSON on line %d: %v", lineNo, err)
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}

	logrus.Infof("loaded %d records from %s (%d malformed lines skipped)", len(records), path, malformed)
	return records, nil
}
