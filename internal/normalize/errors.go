package normalize

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPrice              = errors.New("invalid_price")
	ErrUnknownAvailabilityStatus = errors.New("unknown_availability_status")
	ErrCurrencyMismatch          = errors.New("currency_mismatch")
	ErrMissingField              = errors.New("missing_field")
	ErrUnknownStore              = errors.New("unknown_store")
	ErrInvalidNutrition          = errors.New("invalid_nutrition")
)

// Error reports why a raw item could not be normalized. It names the offending field and
// the raw value so the rejection can be logged without the whole record.
type Error struct {
	Store    string
	SourceID string
	Field    string
	Value    string
	Err      error
}

func (e *Error) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("normalize %s/%s: %s: %v", e.Store, e.SourceID, e.Field, e.Err)
	}
	return fmt.Sprintf("normalize %s/%s: %s %q: %v", e.Store, e.SourceID, e.Field, e.Value, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
