package action

import "errors"

// ErrMalformedRecord is returned when a raw provider record is missing a
// required field or carries one that cannot be coerced to its canonical type.
var ErrMalformedRecord = errors.New("malformed provider record")
