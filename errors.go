package cardmask

import (
	"errors"
	"fmt"
)

// Failure kinds reported per card
var (
	ErrNameNotResolved  = errors.New("name not resolved")
	ErrImageUnavailable = errors.New("image unavailable")
	ErrRedactionFailure = errors.New("redaction failed")
	ErrOutputFailure    = errors.New("output failed")
)

// CardError describes why one requested name produced no image
type CardError struct {
	Name    string
	SetCode string
	CardID  string
	Kind    error
	Err     error
}

func (e *CardError) Error() string {
	where := ""
	if e.SetCode != "" {
		where = fmt.Sprintf(" [%s #%s]", e.SetCode, e.CardID)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s%s: %v", e.Name, where, e.Kind)
	}
	return fmt.Sprintf("%s%s: %v: %v", e.Name, where, e.Kind, e.Err)
}

func (e *CardError) Unwrap() error { return e.Err }

// Is matches the failure kind as well as the wrapped cause
func (e *CardError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}
