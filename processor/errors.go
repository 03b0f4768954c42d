package processor

import "fmt"

// ShapeError reports a series list that cannot be unified.
type ShapeError struct {
	Reason string
	Err    error
}

func (e *ShapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unify: %s: %v", e.Reason, e.Err)
	}
	return "unify: " + e.Reason
}

func (e *ShapeError) Unwrap() error { return e.Err }
