package store

// NotFoundError is returned when no record exists for a user id.
type NotFoundError struct {
	UserID string
}

func (e NotFoundError) Error() string {
	if e.UserID == "" {
		return "record not found"
	}

	return "record not found: " + e.UserID
}

// DurabilityError is returned when a save attempt did not durably commit.
// The in-memory state may be ahead of the on-disk snapshot until the
// reconciliation loop manages a successful flush.
type DurabilityError struct {
	Op  string
	Err error
}

func (e DurabilityError) Error() string {
	return "snapshot not durably saved (" + e.Op + "): " + e.Err.Error()
}

func (e DurabilityError) Unwrap() error {
	return e.Err
}
