package identity

import (
	"errors"
	"fmt"
)

var (
	ErrUnconfiguredStore      = errors.New("unconfigured_store")
	ErrConflictingStore       = errors.New("conflicting_store")
	ErrMalformedCategoryPath  = errors.New("malformed_category_path")
	ErrCategoryParentConflict = errors.New("category_parent_conflict")
)

// ResolutionError reports an identity inconsistency for one item: a natural key that maps
// to a row with different immutable attributes, or a key that cannot be formed at all.
type ResolutionError struct {
	Store  string
	Entity string
	Key    string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s %s %q: %v", e.Store, e.Entity, e.Key, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }
