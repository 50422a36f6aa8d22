package analyzer

import "errors"

var (
	// ErrTimeout marks an analysis abandoned because its deadline passed.
	ErrTimeout = errors.New("analyzer timeout")
	// ErrPanic marks an analysis that panicked inside the Analyzer.
	ErrPanic = errors.New("analyzer panic")
)
