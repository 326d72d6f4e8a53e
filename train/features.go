package train

import (
	"time"
)

// FeatureNames is the ordered feature contract shared with the serving
// engine. The names, their order, and every formula in BuildFeatureVector
// are replicated verbatim by the external inference engine; any change here
// must ship in lockstep with it.
var FeatureNames = []string{
	"correlation_average_deviation",
	"correlation_pattern_similarity",
	"correlation_matching_asns",
	"correlation_has_history",
	"timezone_offset_hours",
	"is_vpn_or_proxy",
	"suspicion_score",
	"hour_of_day",
	"weekday",
	"locale_score",
}

// FeatureCount is the fixed width of every feature vector.
const FeatureCount = 10

// suspicionScores maps VPN suspicion levels to feature values. Unrecognized
// levels score 0.0.
var suspicionScores = map[string]float64{
	"high":   1.0,
	"medium": 0.5,
	"low":    0.25,
}

// normalizeRTT maps an RTT deviation in milliseconds onto [0, 1].
func normalizeRTT(rttMs float64) float64 {
	return clamp((rttMs-10)/490, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BuildFeatureVector converts one visit record into the fixed FeatureCount
// vector. Deterministic given (record, clock): identical inputs produce
// bit-identical output. The clock supplies the timestamp fallback for
// records without one; production binds time.Now, tests a fixed instant.
func BuildFeatureVector(rec *VisitRecord, clock func() time.Time) []float64 {
	features := make([]float64, 0, FeatureCount)

	// ASN correlation block. An absent sub-object yields four zeros as a
	// block rather than per-field defaults; the serving engine makes the
	// same distinction, so it is preserved even though both paths currently
	// emit the same numbers.
	if corr := rec.ASNCorrelation; corr != nil {
		features = append(features, normalizeRTT(corr.AverageDeviation))
		features = append(features, corr.PatternSimilarity)
		features = append(features, corr.MatchingASNs/50.0)
		if corr.VisitCount > 0 {
			features = append(features, 1.0)
		} else {
			features = append(features, 0.0)
		}
	} else {
		features = append(features, 0.0, 0.0, 0.0, 0.0)
	}

	// Timezone offset, normalized half-day scale.
	tzHours := rec.TimezoneOffsetMinutes / 60.0
	features = append(features, clamp(tzHours/12.0, -1, 1))

	// VPN detection.
	if vpn := rec.VPNDetection; vpn != nil {
		if vpn.IsLikelyVPN {
			features = append(features, 1.0)
		} else {
			features = append(features, 0.0)
		}
		level := vpn.SuspicionLevel
		if level == "" {
			level = "low"
		}
		features = append(features, suspicionScores[level])
	} else {
		features = append(features, 0.0, 0.0)
	}

	// Time-of-day and day-of-week from the record timestamp, falling back
	// to the run clock when absent or unparsable.
	ts := recordTime(rec.Timestamp, clock)
	features = append(features, float64(ts.Hour())/24.0)
	features = append(features, float64(mondayWeekday(ts))/7.0)

	// Locale presence.
	if len(rec.Locale) > 2 {
		features = append(features, 0.5)
	} else {
		features = append(features, 0.0)
	}

	return features
}

// recordTime parses the record's RFC 3339 timestamp, falling back to the
// injected clock.
func recordTime(raw string, clock func() time.Time) time.Time {
	if raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			return ts
		}
	}
	return clock()
}

// mondayWeekday returns the Monday-based weekday index in [0, 6], matching
// the serving engine's convention (Go's time.Weekday is Sunday-based).
func mondayWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
