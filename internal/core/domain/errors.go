package domain

import "errors"

var (
	// ErrInvalidCoordinate is returned for out-of-range or non-finite latitude/longitude.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrInvalidRoute is returned for routes with fewer than two points or an invalid point.
	ErrInvalidRoute = errors.New("invalid route")
	// ErrInvalidDistance is returned for negative or non-finite radii and corridor widths.
	ErrInvalidDistance = errors.New("invalid distance")
	// ErrInvalidLimit is returned when a search is called without a positive result cap.
	ErrInvalidLimit = errors.New("invalid limit")
	// ErrInvalidReport is returned when a report fails field validation.
	ErrInvalidReport = errors.New("invalid report")
	// ErrInvalidDetection is returned for submissions with no usable observation.
	ErrInvalidDetection = errors.New("invalid detection")
	// ErrInvalidCamera is returned for camera registrations with a bad id, address or port.
	ErrInvalidCamera = errors.New("invalid camera")
	// ErrNotFound is returned by repositories when no row matches.
	ErrNotFound = errors.New("not found")
)

// IsInvalidInput reports whether err stems from caller-supplied input.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidCoordinate) ||
		errors.Is(err, ErrInvalidRoute) ||
		errors.Is(err, ErrInvalidDistance) ||
		errors.Is(err, ErrInvalidLimit) ||
		errors.Is(err, ErrInvalidReport) ||
		errors.Is(err, ErrInvalidDetection) ||
		errors.Is(err, ErrInvalidCamera)
}
