package geo

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

func TestFixed_Locate(t *testing.T) {
	want := models.Coordinates{Lat: 47.6062, Lon: -122.3321}
	got, err := Fixed(want).Locate(context.Background())
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if got != want {
		t.Errorf("Locate() = %+v, want %+v", got, want)
	}
}

func TestFixed_Locate_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Fixed{Lat: 1, Lon: 2}.Locate(ctx)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Locate() error = %v, want ErrUnavailable", err)
	}
}

func TestUnavailable_Locate(t *testing.T) {
	tests := []struct {
		name     string
		loc      Locator
		contains string
	}{
		{"no reason", Unavailable{}, "geolocation unavailable"},
		{"reason", Unavailable{Reason: "not supported"}, "not supported"},
		{"denied", Denied, "permission denied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.loc.Locate(context.Background())
			if !errors.Is(err, ErrUnavailable) {
				t.Fatalf("Locate() error = %v, want ErrUnavailable", err)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("Locate() error = %q, want it to contain %q", err, tt.contains)
			}
		})
	}
}
