package analytics

import "errors"

var (
	// ErrInsufficientHistory is returned when a statistic is requested on a
	// series too short to compute it.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrZeroVariance is returned when a ratio would divide by a zero
	// volatility. Flat series are an error condition, not infinity.
	ErrZeroVariance = errors.New("zero variance")
)
