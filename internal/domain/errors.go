package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors (no external dependencies).
var (
	ErrNotFound           = errors.New("resource not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already registered")
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicate          = errors.New("duplicate resource")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflicts with current state")
	ErrInsufficientStock  = errors.New("insufficient stock")

	// Build engine failure kinds.
	ErrBoardNotFound      = errors.New("board not found or inactive")
	ErrConcurrentConflict = errors.New("concurrent update conflict")
	ErrPersistenceFailure = errors.New("persistence failure")
)

// Shortfall is a BOM line whose required units exceed the available stock.
type Shortfall struct {
	PartID      string `json:"-"`
	PartNumber  string `json:"part_id"`
	Description string `json:"description,omitempty"`
	Required    int    `json:"required"`
	Available   int    `json:"available"`
	Sensitive   bool   `json:"-"`
}

// Missing returns how many units are lacking.
func (s Shortfall) Missing() int { return s.Required - s.Available }

// InsufficientStockError carries the exact list of shortfalls.
// errors.Is(err, ErrInsufficientStock) holds for it.
type InsufficientStockError struct {
	Shortfalls []Shortfall
}

func (e *InsufficientStockError) Error() string {
	if len(e.Shortfalls) == 0 {
		return ErrInsufficientStock.Error()
	}
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("%s (need %d, have %d)", s.PartNumber, s.Required, s.Available))
	}
	return ErrInsufficientStock.Error() + ": " + strings.Join(parts, ", ")
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// ShortfallsOf extracts the shortfalls from err, if any.
func ShortfallsOf(err error) []Shortfall {
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return ise.Shortfalls
	}
	return nil
}
