package form

import "errors"

var (
	// ErrFieldExists indicates an array field is already bound to the address.
	ErrFieldExists = errors.New("form: array field already exists at address")
)
