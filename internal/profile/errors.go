package profile

import "errors"

var (
	// ErrDeviceNotFound is returned when no loaded device matches an id.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrPresetNotFound is returned when a preset name matches nothing or is ambiguous.
	ErrPresetNotFound = errors.New("preset not found")
	// ErrInvalidProfile is returned when a preset file violates the data model.
	ErrInvalidProfile = errors.New("invalid preset file")
)
