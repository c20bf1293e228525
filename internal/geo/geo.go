// Package geo provides the great-circle math used for line-start detection
// and slope-rate derivation: haversine distance, initial heading, and
// minimal heading difference.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used for haversine distances.
const EarthRadiusMeters = 6371000.0

// DistanceMeters returns the haversine distance between two lat/lon points
// in degrees.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// HeadingDegrees returns the initial great-circle heading from the start
// point to the end point, in the range [0, 360).
func HeadingDegrees(startLat, startLon, endLat, endLon float64) float64 {
	startLatRad := startLat * math.Pi / 180
	startLonRad := startLon * math.Pi / 180
	endLatRad := endLat * math.Pi / 180
	endLonRad := endLon * math.Pi / 180

	dLon := endLonRad - startLonRad

	y := math.Sin(dLon) * math.Cos(endLatRad)
	x := math.Cos(startLatRad)*math.Sin(endLatRad) -
		math.Sin(startLatRad)*math.Cos(endLatRad)*math.Cos(dLon)

	heading := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(heading+360, 360)
}

// HeadingDifference returns the smallest absolute difference between two
// headings in degrees, in the range [0, 180].
func HeadingDifference(a, b float64) float64 {
	diff := math.Abs(a - b)
	return math.Min(diff, 360-diff)
}
