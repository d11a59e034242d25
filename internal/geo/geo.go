// Package geo supplies device coordinates for the "use current location" action.
package geo

import (
	"context"
	"errors"
	"fmt"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// ErrUnavailable is returned when coordinates cannot be obtained (permission
// denied, unsupported, timed out).
var ErrUnavailable = errors.New("geolocation unavailable")

// Locator resolves the current position.
type Locator interface {
	Locate(ctx context.Context) (models.Coordinates, error)
}

// Fixed is a Locator for coordinates already known to the caller, e.g. sent by the device.
type Fixed models.Coordinates

func (f Fixed) Locate(ctx context.Context) (models.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return models.Coordinates(f), nil
}

// Unavailable is a Locator that always fails with Reason.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Locate(context.Context) (models.Coordinates, error) {
	if u.Reason == "" {
		return models.Coordinates{}, ErrUnavailable
	}
	return models.Coordinates{}, fmt.Errorf("%w: %s", ErrUnavailable, u.Reason)
}

// Denied is the Locator for a user who refused the permission prompt.
var Denied Locator = Unavailable{Reason: "permission denied"}
