package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// navLine builds a $NAVIGATION message with the given field values in
// positions 1..n.
func navLine(fields ...string) string {
	line := "$NAVIGATION"
	for _, f := range fields {
		line += "," + f
	}
	return line
}

func TestParseNavigation_Basic(t *testing.T) {
	line := navLine(
		"43.508", "16.439", "1.2", "25.5", "8.3", "33.8", // lat lon sigma depth alt seabed
		"0.1", "0.2", "0.0", "0.0", // geo velocities
		"1.5", "0.0", "0.0", // body velocities
	)
	data, ok := ParseNavigation(line)
	require.True(t, ok)

	require.NotNil(t, data.Latitude)
	assert.InDelta(t, 43.508, *data.Latitude, 1e-9)
	require.NotNil(t, data.Depth)
	assert.InDelta(t, 25.5, *data.Depth, 1e-9)
	require.NotNil(t, data.Altitude)
	assert.InDelta(t, 8.3, *data.Altitude, 1e-9)
	require.NotNil(t, data.USpeed)
	assert.InDelta(t, 1.5, *data.USpeed, 1e-9)

	// Fields past the end of the message stay nil.
	assert.Nil(t, data.Heading)
	assert.Nil(t, data.Pitch)
}

func TestParseNavigation_UndefFields(t *testing.T) {
	line := navLine(
		"43.508", "16.439", "UNDEF", "25.5", "UNDEF", "",
		"0.1", "0.2", "0.0", "0.0",
	)
	data, ok := ParseNavigation(line)
	require.True(t, ok)

	assert.Nil(t, data.SigmaPos)
	assert.Nil(t, data.Altitude)
	assert.Nil(t, data.Seabed)
	require.NotNil(t, data.Depth)
	assert.InDelta(t, 25.5, *data.Depth, 1e-9)
}

func TestParseNavigation_ChecksumStripped(t *testing.T) {
	line := navLine("43.508", "16.439", "1.2", "25.5", "8.3", "33.8",
		"0.1", "0.2", "0.0", "0.0") + "*4F"
	data, ok := ParseNavigation(line)
	require.True(t, ok)
	require.NotNil(t, data.UpSpeed)
	assert.InDelta(t, 0.0, *data.UpSpeed, 1e-9)
}

func TestParseNavigation_Heading(t *testing.T) {
	fields := make([]string, 25)
	for i := range fields {
		fields[i] = "UNDEF"
	}
	fields[22] = "183.4" // heading occupies field 23
	fields[23] = "-1.0"  // roll
	fields[24] = "2.5"   // pitch

	data, ok := ParseNavigation(navLine(fields...))
	require.True(t, ok)
	require.NotNil(t, data.Heading)
	assert.InDelta(t, 183.4, *data.Heading, 1e-9)
	require.NotNil(t, data.Roll)
	assert.InDelta(t, -1.0, *data.Roll, 1e-9)
	require.NotNil(t, data.Pitch)
	assert.InDelta(t, 2.5, *data.Pitch, 1e-9)
}

func TestParseNavigation_Rejected(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"wrong tag", "$HBEAT"},
		{"too few fields", "$NAVIGATION,43.5,16.4"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParseNavigation(tt.line)
			assert.False(t, ok)
		})
	}
}

func TestSafeFloat(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"1.5", Float(1.5)},
		{"-0.25", Float(-0.25)},
		{" 3 ", Float(3)},
		{"UNDEF", nil},
		{"undef", nil},
		{"", nil},
		{"bogus", nil},
	}
	for _, tt := range tests {
		got := safeFloat(tt.in)
		if tt.want == nil {
			assert.Nil(t, got, "safeFloat(%q)", tt.in)
		} else {
			require.NotNil(t, got, "safeFloat(%q)", tt.in)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		}
	}
}
