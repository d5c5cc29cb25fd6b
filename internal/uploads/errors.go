package uploads

// ValidationError reports a submission rejected before any analysis work starts.
type ValidationError struct {
	Message string
	Details string
}

func (e *ValidationError) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return e.Message + ": " + e.Details
}

func invalid(message, details string) *ValidationError {
	return &ValidationError{Message: message, Details: details}
}
