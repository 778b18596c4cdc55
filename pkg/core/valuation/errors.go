package valuation

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching. The concrete error types below unwrap to these.
var (
	ErrShapeMismatch        = errors.New("shape mismatch")
	ErrInvalidTerminalValue = errors.New("invalid terminal value")
	ErrDivisionByZero       = errors.New("division by zero")
)

// ShapeMismatchError reports a driver path whose length disagrees with the horizon.
type ShapeMismatchError struct {
	Field string
	Got   int
	Want  int
}

func (e *ShapeMismatchError) Error() string {
	if e.Field == "horizon" {
		return fmt.Sprintf("shape mismatch: horizon must be >= %d, got %d", e.Want, e.Got)
	}
	return fmt.Sprintf("shape mismatch: %s has length %d, horizon is %d", e.Field, e.Got, e.Want)
}

func (e *ShapeMismatchError) Unwrap() error { return ErrShapeMismatch }

// InvalidTerminalValueError is returned when the terminal WACC does not exceed stable growth.
type InvalidTerminalValueError struct {
	WACC         float64
	StableGrowth float64
}

func (e *InvalidTerminalValueError) Error() string {
	return fmt.Sprintf("invalid terminal value: terminal wacc %.4f must exceed stable growth %.4f",
		e.WACC, e.StableGrowth)
}

func (e *InvalidTerminalValueError) Unwrap() error { return ErrInvalidTerminalValue }

// DivisionByZeroError flags a zero denominator (shares outstanding or a sales-to-capital entry).
// Index is -1 for scalar fields.
type DivisionByZeroError struct {
	Field string
	Index int
}

func (e *DivisionByZeroError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("division by zero: %s is zero", e.Field)
	}
	return fmt.Sprintf("division by zero: %s[%d] is zero", e.Field, e.Index)
}

func (e *DivisionByZeroError) Unwrap() error { return ErrDivisionByZero }
