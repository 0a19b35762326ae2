package repository

import "errors"

// ErrNotFound is returned by repository implementations when a
// requested entity does not exist.
var ErrNotFound = errors.New("not found")
