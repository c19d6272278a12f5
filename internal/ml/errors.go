package ml

import "errors"

var (
	// ErrNotTrained is returned when a prediction is requested from a
	// model that has not been trained or loaded.
	ErrNotTrained = errors.New("model not trained")

	// ErrInsufficientData is returned when a training set is below the
	// minimum sample count.
	ErrInsufficientData = errors.New("insufficient training data")
)
