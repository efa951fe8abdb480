package signal

import "fmt"

// MalformedError is returned for a reading that lacks the fields needed to
// identify its transmitter
type MalformedError struct {
	Category Category
	Field    string
	msg      string
}

func NewMalformedError(category Category, field, msg string) *MalformedError {
	return &MalformedError{Category: category, Field: field, msg: msg}
}

func (e *MalformedError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed %s reading: %s", e.Category, e.msg)
	}
	return fmt.Sprintf("malformed %s reading: %s: %s", e.Category, e.Field, e.msg)
}
