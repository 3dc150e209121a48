package handover

import (
	"errors"
	"fmt"
)

// ErrContractViolation marks reports the measurement source should never have
// emitted. They point at a bug upstream and are never retried.
var ErrContractViolation = errors.New("measurement contract violation")

type ContractViolationError struct {
	Kind   EventKind
	Conn   ConnID
	Cell   CellID // zero when the violation is not about a neighbour
	Reason string
}

func (e *ContractViolationError) Error() string {
	if e.Cell != 0 {
		return fmt.Sprintf("%s report for conn %d: %s (cell %d)", e.Kind, e.Conn, e.Reason, e.Cell)
	}
	return fmt.Sprintf("%s report for conn %d: %s", e.Kind, e.Conn, e.Reason)
}

func (e *ContractViolationError) Unwrap() error { return ErrContractViolation }

func IsContractViolation(err error) bool {
	return errors.Is(err, ErrContractViolation)
}
