package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateLocation_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		min     int
		max     int
		wantErr error
	}{
		{"empty", "", 1, 100, ErrLocationEmpty},
		{"spaces", "   ", 1, 100, ErrLocationEmpty},
		{"tab", "\t", 1, 100, ErrLocationEmpty},
		{"too short", "x", 2, 100, ErrLocationTooShort},
		{"too long", strings.Repeat("a", 101), 1, 100, ErrLocationTooLong},
		{"slash", "sea/ttle", 1, 100, ErrLocationInvalidChars},
		{"question", "sea?ttle", 1, 100, ErrLocationInvalidChars},
		{"hash", "sea#ttle", 1, 100, ErrLocationInvalidChars},
		{"control", "sea\x00ttle", 1, 100, ErrLocationInvalidChars},
		{"ampersand", "sea&ttle", 1, 100, ErrLocationInvalidChars},
		{"angle bracket", "<script>", 1, 100, ErrLocationInvalidChars},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateLocation(tc.input, tc.min, tc.max)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("ValidateLocation(%q) error = %v, want %v", tc.input, err, tc.wantErr)
			}
		})
	}
}

func TestValidateLocation_Valid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "Seattle", "Seattle"},
		{"with space", "New York", "New York"},
		{"comma", "London,uk", "London,uk"},
		{"hyphen", "Winston-Salem", "Winston-Salem"},
		{"period and apostrophe", "St. John's", "St. John's"},
		{"trimmed", "  Boston  ", "Boston"},
		{"unicode", "Zürich", "Zürich"},
		{"digits", "Area51", "Area51"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateLocation(tc.input, 1, 100)
			if err != nil {
				t.Fatalf("ValidateLocation() err = %v", err)
			}
			if got != tc.want {
				t.Errorf("ValidateLocation() = %q, want %q", got, tc.want)
			}
		})
	}
}

// TestValidateLocation_LengthBoundaries verifies bounds are inclusive and
// counted in runes, not bytes.
func TestValidateLocation_LengthBoundaries(t *testing.T) {
	if _, err := ValidateLocation("ab", 2, 100); err != nil {
		t.Errorf("min boundary: err = %v", err)
	}
	if _, err := ValidateLocation(strings.Repeat("a", 100), 1, 100); err != nil {
		t.Errorf("max boundary: err = %v", err)
	}
	if _, err := ValidateLocation(strings.Repeat("ü", 10), 1, 10); err != nil {
		t.Errorf("multibyte at max: err = %v", err)
	}
}

func ptr(f float64) *float64 { return &f }

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		in      CoordinatesInput
		wantErr bool
	}{
		{"seattle", CoordinatesInput{Lat: ptr(47.6062), Lon: ptr(-122.3321)}, false},
		{"origin", CoordinatesInput{Lat: ptr(0), Lon: ptr(0)}, false},
		{"poles and antimeridian", CoordinatesInput{Lat: ptr(-90), Lon: ptr(180)}, false},
		{"lat too high", CoordinatesInput{Lat: ptr(90.5), Lon: ptr(0)}, true},
		{"lon too low", CoordinatesInput{Lat: ptr(0), Lon: ptr(-180.1)}, true},
		{"missing lat", CoordinatesInput{Lon: ptr(10)}, true},
		{"missing both", CoordinatesInput{}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateCoordinates(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidCoordinates) {
					t.Errorf("ValidateCoordinates() error = %v, want ErrInvalidCoordinates", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateCoordinates() error = %v", err)
			}
			if got.Lat != *tc.in.Lat || got.Lon != *tc.in.Lon {
				t.Errorf("ValidateCoordinates() = %+v, want %v,%v", got, *tc.in.Lat, *tc.in.Lon)
			}
		})
	}
}
