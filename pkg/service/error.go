package service

import "fmt"

// ConflictError is returned when a create would clobber an existing record
// without the caller opting in to overwrite.
type ConflictError struct {
	UserID string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("memory for %q already exists; patch it or set overwrite", e.UserID)
}
