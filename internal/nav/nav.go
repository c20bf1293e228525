// Package nav receives vehicle navigation data over the bridge TCP link and
// exposes the latest fix to the depth controller.
//
// The bridge speaks a line-oriented ASCII protocol: the vehicle connects to
// us and streams $NAVIGATION messages; we answer with periodic heartbeats.
// Sensor channels that have no value are reported as UNDEF, so every field
// of NavigationData is a pointer.
package nav

import (
	"strconv"
	"strings"
	"time"
)

// NavigationData is a single navigation fix from the vehicle bridge.
// Nil fields were UNDEF in the source message.
type NavigationData struct {
	// Position
	Latitude  *float64 // deg
	Longitude *float64 // deg
	SigmaPos  *float64 // position error estimate (m)
	Depth     *float64 // depth below surface (m)
	Altitude  *float64 // height above seafloor (m)
	Seabed    *float64 // water column height (m)

	// Ground-referenced velocity, geographic frame
	NorthSpeed *float64 // m/s
	EastSpeed  *float64 // m/s
	DownSpeed  *float64 // m/s
	UpSpeed    *float64 // m/s

	// Ground-referenced velocity, body frame
	USpeed *float64 // m/s
	VSpeed *float64 // m/s
	WSpeed *float64 // m/s

	// Orientation
	Heading *float64 // deg, positive to starboard
	Roll    *float64 // deg
	Pitch   *float64 // deg, positive bow up
}

// Snapshot pairs a navigation fix with the time it was received, so
// consumers can apply their own staleness policy.
type Snapshot struct {
	Data NavigationData
	At   time.Time
}

// Source supplies the latest navigation snapshot to the control loop.
// The bool result is false when no fix has been received yet.
type Source interface {
	Snapshot() (Snapshot, bool)
}

// navigation message field indexes (after the $NAVIGATION tag)
const (
	fieldLatitude = iota + 1
	fieldLongitude
	fieldSigmaPos
	fieldDepth
	fieldAltitude
	fieldSeabed
	fieldNorthSpeed
	fieldEastSpeed
	fieldDownSpeed
	fieldUpSpeed
	fieldUSpeed
	fieldVSpeed
	fieldWSpeed
	fieldHeading = 23
	fieldRoll    = 24
	fieldPitch   = 25
)

// minNavigationFields is the minimum number of comma-separated fields a
// $NAVIGATION message must carry to be usable.
const minNavigationFields = 10

// ParseNavigation parses a $NAVIGATION message into a NavigationData.
// A trailing checksum ("*XX") is stripped. Fields that are empty or UNDEF
// parse to nil. Returns false when the line is not a usable navigation
// message.
func ParseNavigation(line string) (NavigationData, bool) {
	if !strings.HasPrefix(line, "$NAVIGATION") {
		return NavigationData{}, false
	}
	if i := strings.IndexByte(line, '*'); i >= 0 {
		line = line[:i]
	}

	fields := strings.Split(line, ",")
	if len(fields) < minNavigationFields {
		return NavigationData{}, false
	}

	at := func(i int) *float64 {
		if i >= len(fields) {
			return nil
		}
		return safeFloat(fields[i])
	}

	return NavigationData{
		Latitude:   at(fieldLatitude),
		Longitude:  at(fieldLongitude),
		SigmaPos:   at(fieldSigmaPos),
		Depth:      at(fieldDepth),
		Altitude:   at(fieldAltitude),
		Seabed:     at(fieldSeabed),
		NorthSpeed: at(fieldNorthSpeed),
		EastSpeed:  at(fieldEastSpeed),
		DownSpeed:  at(fieldDownSpeed),
		UpSpeed:    at(fieldUpSpeed),
		USpeed:     at(fieldUSpeed),
		VSpeed:     at(fieldVSpeed),
		WSpeed:     at(fieldWSpeed),
		Heading:    at(fieldHeading),
		Roll:       at(fieldRoll),
		Pitch:      at(fieldPitch),
	}, true
}

// safeFloat converts a message field to a float, treating empty and UNDEF
// values as absent.
func safeFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "UNDEF") {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// Float returns a pointer to v. Convenience for constructing fixes in tests
// and simulators.
func Float(v float64) *float64 { return &v }
