package store

import "errors"

// ErrNotFound is returned when a lookup by id finds no row.
var ErrNotFound = errors.New("entity not found")
