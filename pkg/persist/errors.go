package persist

import "errors"

// ErrNotFound is returned by LoadTask when no snapshot
// exists for the requested id.
var ErrNotFound = errors.New("persist: not found")
