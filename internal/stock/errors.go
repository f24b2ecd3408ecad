package stock

import (
	"errors"
	"fmt"

	"commerce_backend/internal/models"
)

// Sentinels matched through errors.Is by callers that only care about the kind.
var (
	ErrInsufficientStock        = errors.New("insufficient stock")
	ErrMissingRequiredSelection = errors.New("missing required selection")
	ErrUnavailableOption        = errors.New("selected option is unavailable")
	ErrNegativeStock            = errors.New("stock cannot go below zero")
	ErrDuplicateVariantKey      = errors.New("variant already exists for this selection")
	ErrInvalidSelection         = errors.New("invalid option selection")
	ErrDamagedExceedsStock      = errors.New("damaged quantity cannot exceed stock quantity")
	ErrTrackingDisabled         = errors.New("inventory tracking is disabled for this entity")
)

// InsufficientStockError carries enough detail to render a user-facing message.
type InsufficientStockError struct {
	Entity    models.EntityRef
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("%s for %s (%s). Requested: %d, Available: %d",
		ErrInsufficientStock, e.Name, e.Entity, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// MissingRequiredSelectionError is returned when a tracked (or required) group has no selection.
type MissingRequiredSelectionError struct {
	ItemName  string
	GroupID   int64
	GroupName string
}

func (e *MissingRequiredSelectionError) Error() string {
	return fmt.Sprintf("%s: %s requires a choice for %q (group %d)", ErrMissingRequiredSelection, e.ItemName, e.GroupName, e.GroupID)
}

func (e *MissingRequiredSelectionError) Is(target error) bool {
	return target == ErrMissingRequiredSelection
}

// UnavailableOptionError is returned for options with available=false or inactive variants.
type UnavailableOptionError struct {
	ItemName   string
	OptionID   int64
	OptionName string
}

func (e *UnavailableOptionError) Error() string {
	return fmt.Sprintf("%s: %q on %s", ErrUnavailableOption, e.OptionName, e.ItemName)
}

func (e *UnavailableOptionError) Is(target error) bool { return target == ErrUnavailableOption }

// NegativeStockError is a ledger guard. Correct callers never trigger it.
type NegativeStockError struct {
	Entity   models.EntityRef
	Current  int
	Delta    int
	Proposed int
}

func (e *NegativeStockError) Error() string {
	return fmt.Sprintf("%s: %s has %d, delta %d would leave %d", ErrNegativeStock, e.Entity, e.Current, e.Delta, e.Proposed)
}

func (e *NegativeStockError) Is(target error) bool { return target == ErrNegativeStock }

// DuplicateVariantKeyError reports a second variant for the same canonical key.
type DuplicateVariantKeyError struct {
	ItemID int64
	Key    string
}

func (e *DuplicateVariantKeyError) Error() string {
	return fmt.Sprintf("%s: item %d key %q", ErrDuplicateVariantKey, e.ItemID, e.Key)
}

func (e *DuplicateVariantKeyError) Is(target error) bool { return target == ErrDuplicateVariantKey }

// InvalidSelectionError covers min/max violations and options that do not belong to the item.
type InvalidSelectionError struct {
	ItemName string
	Detail   string
}

func (e *InvalidSelectionError) Error() string {
	return fmt.Sprintf("%s for %s: %s", ErrInvalidSelection, e.ItemName, e.Detail)
}

func (e *InvalidSelectionError) Is(target error) bool { return target == ErrInvalidSelection }
