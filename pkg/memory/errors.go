package memory

// ValidationError reports a candidate record that does not conform to the
// structural schema. The mutation that produced the candidate is aborted
// before it reaches the index.
type ValidationError struct {
	// Field is the path of the violating field, e.g. "working_memory.tasks[2].title".
	Field string

	// Reason describes the violated constraint.
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}

	return "validation failed: " + e.Field + ": " + e.Reason
}

// InputError reports a malformed payload element, such as an event entry that
// is not a structured object. The whole batch is rejected.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return "invalid input: " + e.Reason
}
