package shared

// ErrInvalidInput indicates a schema or range violation caught before any mutation
type ErrInvalidInput struct {
	Field  string
	Reason string
}

func (e ErrInvalidInput) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return "invalid input: " + e.Field + ": " + e.Reason
}

// Is implements the errors.Is interface for ErrInvalidInput
func (e ErrInvalidInput) Is(target error) bool {
	t, ok := target.(ErrInvalidInput)
	if !ok {
		return false
	}
	// An empty target field matches any ErrInvalidInput
	if t.Field == "" {
		return true
	}
	return e.Field == t.Field
}
