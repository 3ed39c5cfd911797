package store

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before any state change.
	ErrValidation = errors.New("validation failed")

	// ErrUnknownCategory is returned when an item references a category that does not exist.
	// It also matches ErrValidation.
	ErrUnknownCategory = fmt.Errorf("%w: unknown category", ErrValidation)

	// ErrNotFound is returned when an edit or delete names an id that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCategoryInUse is matched by *CategoryInUseError.
	ErrCategoryInUse = errors.New("category in use")

	// ErrPersistence is returned when a mutation could not be written to the backend.
	// The mutation is not applied in that case.
	ErrPersistence = errors.New("persisting inventory")
)

// CategoryInUseError reports a category deletion blocked by items that still reference it.
type CategoryInUseError struct {
	ID    string
	Name  string
	Count int
}

func (e *CategoryInUseError) Error() string {
	return fmt.Sprintf("cannot delete category %q: still holds %d item(s)", e.Name, e.Count)
}

func (e *CategoryInUseError) Is(target error) bool {
	return target == ErrCategoryInUse
}
