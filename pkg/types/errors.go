package types

import "errors"

// Errors returned by the registration packages. Callers check them with errors.Is.
var (
	// ErrShapeMismatch is returned when two images or spectra differ in shape.
	ErrShapeMismatch = errors.New("registration: shape mismatch")

	// ErrInvalidImage is returned for images with no samples or an inconsistent buffer.
	ErrInvalidImage = errors.New("registration: invalid image")

	// ErrEmptyShifts is returned when a crop is requested without shifts.
	ErrEmptyShifts = errors.New("registration: empty shift sequence")

	// ErrInvalidCropWindow is returned when a crop window is inverted or out of range.
	ErrInvalidCropWindow = errors.New("registration: invalid crop window")

	// ErrEmptyStack is returned when a stack alignment receives no frames.
	ErrEmptyStack = errors.New("registration: empty stack")
)
