package train

import (
	"strings"

	"github.com/geoinfer/region-trainer/train/regions"
)

// maxNearestSqDegrees gates the nearest-centroid match: squared planar
// distance in degrees, so 100 accepts anything within a straight-line 10
// degrees (roughly 1000 km). Intentionally loose at metro granularity.
const maxNearestSqDegrees = 100.0

// ExtractLabel derives the ground-truth region for a visit record, or
// reports that no label can be derived. Signal priority, first match wins:
// coordinates (nearest catalog centroid within the distance gate), then
// geo-IP city, then ASN-inferred city. Never panics and never errors; an
// unlabelable record is simply excluded from training.
func ExtractLabel(cat *regions.Catalog, rec *VisitRecord) (string, bool) {
	if rec.Latitude != nil && rec.Longitude != nil {
		if id, ok := nearestRegion(cat, *rec.Latitude, *rec.Longitude); ok {
			return id, true
		}
		// Outside the gate for every region: fall through to city signals.
	}

	if id, ok := matchCity(cat, rec.GeoIPCity); ok {
		return id, true
	}
	if id, ok := matchCity(cat, rec.ASNInferredCity); ok {
		return id, true
	}
	return "", false
}

// nearestRegion finds the catalog region whose centroid is closest to the
// given coordinates by squared planar Euclidean distance in degrees — a
// deliberate approximation of great-circle distance, cheap and adequate at
// this granularity. The nearest match is accepted only within the gate.
func nearestRegion(cat *regions.Catalog, lat, lon float64) (string, bool) {
	bestID := ""
	bestSq := maxNearestSqDegrees
	for _, d := range cat.All() {
		dLat := lat - d.Latitude
		dLon := lon - d.Longitude
		sq := dLat*dLat + dLon*dLon
		if sq < bestSq {
			bestSq = sq
			bestID = d.RegionID
		}
	}
	return bestID, bestID != ""
}

// matchCity resolves a reported city string to a region by case-insensitive
// substring containment, checked in both directions: the region's primary
// city name (display name minus a trailing "Metro" qualifier) appearing in
// the reported string, so "Greater Tokyo Area" matches "Tokyo Metro", or the
// reported string appearing in the full display name, so a truncated "York"
// still matches "New York Metro". Whitespace-only strings are treated as
// absent. First match wins in catalog iteration order.
func matchCity(cat *regions.Catalog, city string) (string, bool) {
	city = strings.TrimSpace(city)
	if city == "" {
		return "", false
	}
	cityLower := strings.ToLower(city)
	for _, d := range cat.All() {
		nameLower := strings.ToLower(d.Name)
		token := strings.TrimSpace(strings.TrimSuffix(nameLower, "metro"))
		if token == "" {
			continue
		}
		if strings.Contains(cityLower, token) || strings.Contains(nameLower, cityLower) {
			return d.RegionID, true
		}
	}
	return "", false
}
