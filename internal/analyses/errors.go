package analyses

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

const (
	ErrorCodeValidation     = "validation_error"
	ErrorCodeAnalysisFailed = "analysis_failed"
	ErrorCodeInvalidResult  = "invalid_result"
	ErrorCodeStorage        = "storage_error"
	ErrorCodeNotFound       = "not_found"
	ErrorCodeInternal       = "internal_error"
)

// ParseError reports a worker result line that is not a JSON object.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "invalid analysis result"
	}
	return "invalid analysis result: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// DomainAnalysisError reports a worker that ran but could not analyze the input,
// e.g. because no face was found. Details is the worker's own explanation.
type DomainAnalysisError struct {
	Message string
	Details string
}

func (e *DomainAnalysisError) Error() string { return e.Details }

// StorageError reports a failure persisting an analysis or publishing its derived image.
type StorageError struct {
	Stage string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// StageError records which pipeline stage produced err.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }
