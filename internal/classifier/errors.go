package classifier

import "errors"

// ErrDuplicateCategory is returned when a category name is already registered.
var ErrDuplicateCategory = errors.New("category already registered")
