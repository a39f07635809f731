package models

import "fmt"

// ValidationError marks input that can never succeed on retry, such as a
// staged plan whose role differs from the subscription's role. Callers treat
// it as terminal for the offending item without aborting the surrounding
// pass.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
