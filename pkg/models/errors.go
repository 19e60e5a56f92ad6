package models

import (
	"errors"
	"fmt"
)

// Error taxonomy for the inference pipeline. Callers classify failures with
// errors.Is; errors are never converted into placeholder metrics.
var (
	// ErrConfig marks an invalid hyperparameter or construction argument.
	ErrConfig = errors.New("config error")
	// ErrData marks malformed or insufficient input data.
	ErrData = errors.New("data error")
	// ErrTraining marks a non-finite loss during training.
	ErrTraining = errors.New("training error")
)

// ConfigErrorf wraps ErrConfig with a formatted message.
func ConfigErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// DataErrorf wraps ErrData with a formatted message.
func DataErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrData, fmt.Sprintf(format, args...))
}

// TrainingErrorf wraps ErrTraining with a formatted message.
func TrainingErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrTraining, fmt.Sprintf(format, args...))
}
