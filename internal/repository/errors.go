package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrDuplicate is returned when an insert violates a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

// ErrStaleState is returned when a guarded update matched no row because the record
// changed underneath the caller.
var ErrStaleState = errors.New("record state changed")

// CapacityError reports that linking a subject would overflow the course's hours.
type CapacityError struct {
	Assigned int
	Adding   int
	Limit    int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("total duration %d exceeds course duration %d", e.Assigned+e.Adding, e.Limit)
}

// Remaining returns the hours still free on the course.
func (e *CapacityError) Remaining() int {
	if r := e.Limit - e.Assigned; r > 0 {
		return r
	}
	return 0
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func wrapWrite(op string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}
