package domain

import "fmt"

// DuplicateNameError means an identity creation or alias addition collided
// with an existing primary name or alias. Recoverable: the caller selects
// the existing entity or retries with a different name.
type DuplicateNameError struct {
	Kind       Kind
	Name       string
	ExistingID int64
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s name %q already in use by id %d", e.Kind, e.Name, e.ExistingID)
}

// NotFoundError means a reference to an unknown entity id.
type NotFoundError struct {
	Kind Kind
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s id %d not found", e.Kind, e.ID)
}
